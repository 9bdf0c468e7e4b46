package httpconn

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"testing"
)

// fakeTransport is an in-memory Transport: Read serves from a preloaded
// byte buffer (returning ErrWouldBlock once drained), Write appends to an
// internal buffer.
type fakeTransport struct {
	in     []byte
	inPos  int
	out    bytes.Buffer
	closed bool
	eof    bool // once in is drained, report io.EOF instead of ErrWouldBlock
}

func (f *fakeTransport) Read(b []byte) (int, error) {
	if f.inPos >= len(f.in) {
		if f.eof {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}
	n := copy(b, f.in[f.inPos:])
	f.inPos += n
	return n, nil
}

func (f *fakeTransport) Write(b []byte) (int, error) {
	return f.out.Write(b)
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func TestReadOnceBuffersSimpleGET(t *testing.T) {
	tr := &fakeTransport{in: []byte("GET /index.html HTTP/1.1\r\nHost: example.com\r\nConnection: keep-alive\r\n\r\n")}
	c := New(tr, Options{DocRoot: t.TempDir(), KeepAlive: true})

	if !c.ReadOnce() {
		t.Fatalf("expected ReadOnce to report a complete request")
	}
	if c.parser.method != MethodGET {
		t.Errorf("expected GET, got %v", c.parser.method)
	}
	if c.parser.url != "/index.html" {
		t.Errorf("expected /index.html, got %q", c.parser.url)
	}
	if !c.parser.keepAlive {
		t.Errorf("expected keep-alive to be detected")
	}
}

func TestReadOnceIncompleteRequestReturnsFalse(t *testing.T) {
	tr := &fakeTransport{in: []byte("GET /index.html HTTP/1.1\r\nHost: ex")}
	c := New(tr, Options{DocRoot: t.TempDir()})

	if c.ReadOnce() {
		t.Fatalf("expected incomplete request to return false")
	}
	if c.NeedsClose() {
		t.Errorf("a request still arriving across readiness events must not be flagged for close")
	}
}

func TestReadOnceMalformedRequestNeedsClose(t *testing.T) {
	tr := &fakeTransport{in: []byte("GET \r\n\r\n")}
	c := New(tr, Options{DocRoot: t.TempDir()})

	if c.ReadOnce() {
		t.Fatalf("expected malformed request line to return false")
	}
	if !c.NeedsClose() {
		t.Errorf("expected a malformed request line to request connection close")
	}
}

func TestReadOnceEOFNeedsClose(t *testing.T) {
	tr := &fakeTransport{in: nil, eof: true}
	c := New(tr, Options{DocRoot: t.TempDir()})

	if c.ReadOnce() {
		t.Fatalf("expected EOF to return false")
	}
	if !c.NeedsClose() {
		t.Errorf("expected peer EOF to request connection close")
	}
}

func TestReadOnceBuffersPostWithBody(t *testing.T) {
	body := "user=alice&password=hunter2"
	req := "POST /login HTTP/1.1\r\nHost: x\r\nContent-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	tr := &fakeTransport{in: []byte(req)}
	c := New(tr, Options{DocRoot: t.TempDir()})

	if !c.ReadOnce() {
		t.Fatalf("expected complete POST to be buffered")
	}
	if string(c.bodyBytes()) != body {
		t.Errorf("expected body %q, got %q", body, string(c.bodyBytes()))
	}
}

func TestProcessServesStaticFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/hello.html", "<html>hi</html>")

	tr := &fakeTransport{in: []byte("GET /hello.html HTTP/1.1\r\nHost: x\r\n\r\n")}
	c := New(tr, Options{DocRoot: dir, KeepAlive: true})

	if !c.ReadOnce() {
		t.Fatalf("expected complete request")
	}
	c.Process()
	if !c.Write() {
		t.Fatalf("expected write to fully drain")
	}

	out := tr.out.String()
	if !bytes.Contains([]byte(out), []byte("200 OK")) {
		t.Errorf("expected 200 status line, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("<html>hi</html>")) {
		t.Errorf("expected file body in output, got %q", out)
	}
}

func TestProcessRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTransport{in: []byte("GET /../../../etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n")}
	c := New(tr, Options{DocRoot: dir})

	if !c.ReadOnce() {
		t.Fatalf("expected complete request")
	}
	c.Process()
	c.Write()

	if !bytes.Contains(tr.out.Bytes(), []byte("403")) {
		t.Errorf("expected 403 response for path traversal, got %q", tr.out.String())
	}
}

func TestProcessReturns404ForMissingFile(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTransport{in: []byte("GET /nope.html HTTP/1.1\r\nHost: x\r\n\r\n")}
	c := New(tr, Options{DocRoot: dir})

	c.ReadOnce()
	c.Process()
	c.Write()

	if !bytes.Contains(tr.out.Bytes(), []byte("404")) {
		t.Errorf("expected 404 response, got %q", tr.out.String())
	}
}

func TestCloseConnIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	c := New(tr, Options{DocRoot: t.TempDir()})

	if err := c.CloseConn(); err != nil {
		t.Fatalf("CloseConn: %v", err)
	}
	if err := c.CloseConn(); err != nil {
		t.Fatalf("second CloseConn: %v", err)
	}
	if !tr.closed {
		t.Errorf("expected transport to be closed")
	}
}

func TestKeepAliveResetsParserForNextRequest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/a.html", "a")

	tr := &fakeTransport{in: []byte("GET /a.html HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n")}
	c := New(tr, Options{DocRoot: dir, KeepAlive: true})

	c.ReadOnce()
	c.Process()
	c.Write()

	if c.State() != ConnIdle {
		t.Errorf("expected connection to return to Idle after keep-alive write, got %v", c.State())
	}
	if c.readIdx != 0 {
		t.Errorf("expected read buffer to be reset for the next request")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
}
