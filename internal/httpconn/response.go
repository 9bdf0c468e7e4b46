package httpconn

import (
	"fmt"
	"strings"
)

// responseBuilder accumulates the header segment in a fixed buffer,
// mirroring add_response/add_status_line/add_headers/... in the original.
// The body (for static files) is never copied in here; it is served from
// the separate memory-mapped segment.
type responseBuilder struct {
	buf       [WriteBufferSize]byte
	n         int
	keepAlive bool
}

func (r *responseBuilder) reset(keepAlive bool) {
	r.n = 0
	r.keepAlive = keepAlive
}

func (r *responseBuilder) writeString(s string) bool {
	if r.n+len(s) > len(r.buf) {
		return false
	}
	n := copy(r.buf[r.n:], s)
	r.n += n
	return true
}

func (r *responseBuilder) statusLine(code int) bool {
	title, ok := statusLine[code]
	if !ok {
		title = statusLine[500]
		code = 500
	}
	return r.writeString(fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, title))
}

func (r *responseBuilder) headers(contentLength int) bool {
	ok := r.writeString(fmt.Sprintf("Content-Length: %d\r\n", contentLength))
	ok = ok && r.writeString("Content-Type: text/html\r\n")
	conn := "close"
	if r.keepAlive {
		conn = "keep-alive"
	}
	ok = ok && r.writeString(fmt.Sprintf("Connection: %s\r\n", conn))
	ok = ok && r.writeString("\r\n")
	return ok
}

func (r *responseBuilder) bytes() []byte { return r.buf[:r.n] }

// buildErrorResponse writes the status line and headers for one of the
// fixed small HTML error bodies into r (Content-Length sized to that
// body) and returns the body bytes for the caller to send after them.
func buildErrorResponse(r *responseBuilder, code int, keepAlive bool) []byte {
	r.reset(keepAlive)
	body := statusBody[code]
	if body == "" {
		body = statusBody[500]
		code = 500
	}
	r.statusLine(code)
	r.headers(len(body))
	return []byte(body)
}

// buildHeader prepares the status line and headers for a body of the
// given length, without writing the body itself — used for both static
// files (code always 200) and the inline login/register result pages
// (200 on success, 400 on failure).
func buildHeader(r *responseBuilder, code, contentLength int, keepAlive bool) {
	r.reset(keepAlive)
	r.statusLine(code)
	r.headers(contentLength)
}

// buildOKHeader is buildHeader fixed at 200, for static file responses.
func buildOKHeader(r *responseBuilder, contentLength int, keepAlive bool) {
	buildHeader(r, 200, contentLength, keepAlive)
}

// htmlPage renders a minimal standalone HTML document; used for the
// login/register result pages that are not backed by a file on disk.
func htmlPage(title, message string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(title)
	b.WriteString("</title></head><body><h1>")
	b.WriteString(message)
	b.WriteString("</h1></body></html>")
	return b.String()
}
