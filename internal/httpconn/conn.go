package httpconn

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wattproject/watt-httpd/internal/dbpool"
	"github.com/wattproject/watt-httpd/internal/logger"
	"github.com/wattproject/watt-httpd/internal/timer"
)

// ErrWouldBlock is returned by a Transport's Read/Write when a
// non-blocking, edge-triggered socket has no more data to give (or take)
// right now. The reactor's raw-fd transport returns this on EAGAIN;
// httpconn's read/write loops treat it as "drained for now", not an
// error, per §4.E's edge-triggered discipline ("drained in a loop until
// EAGAIN").
var ErrWouldBlock = errors.New("httpconn: would block")

// Transport is the byte-level I/O surface a Conn needs. The Linux reactor
// supplies a raw non-blocking fd wrapper; the portable fallback supplies a
// net.Conn, which already satisfies this interface.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Options configures a Conn at construction, mirroring the original's
// init(sockfd, addr, root, trig_mode, close_log, sql_user, sql_pw,
// sql_db) — the SQL credentials themselves now live in the dbpool.Pool
// passed in rather than being re-threaded per connection.
type Options struct {
	DocRoot   string
	Users     *dbpool.UserStore
	DB        *dbpool.Pool
	Log       *logger.Logger
	KeepAlive bool // whether keep-alive is honored at all (§6)
}

// Conn is the per-connection HTTP/1.1 state machine of §4.F.
type Conn struct {
	opts Options
	tr   Transport

	state atomic.Int32 // ConnState, lock-free per §5's one-shot discipline

	readBuf  [ReadBufferSize]byte
	readIdx  int
	resp     responseBuilder
	parser   parser
	fileBody *mappedFile

	writeSegs   [][]byte
	writeOff    int // byte offset already sent within writeSegs[0]
	keepAliveOn bool

	improv    atomic.Bool
	timerFlag atomic.Bool
	needClose atomic.Bool

	// TimerSlot is the reactor's back-reference for this connection's
	// idle-timeout registration; the connection never touches the timer
	// list itself (it is reactor-thread-exclusive per §5).
	TimerSlot *timer.Slot

	// traceID threads through every log line this connection produces,
	// so a single request's lifecycle can be grepped out of the shared
	// log stream.
	traceID string

	mu        sync.Mutex // guards fileBody swap on concurrent Close vs Write
	closeOnce sync.Once
}

// New constructs a Conn bound to tr, ready to read its first request.
func New(tr Transport, opts Options) *Conn {
	c := &Conn{opts: opts, tr: tr, keepAliveOn: opts.KeepAlive, traceID: uuid.NewString()}
	c.state.Store(int32(ConnIdle))
	activeConnsTotal.Inc()
	return c
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() ConnState { return ConnState(c.state.Load()) }

func (c *Conn) setState(s ConnState) { c.state.Store(int32(s)) }

// SetImprov and SetTimerFlag satisfy workerpool.Conn: they flip the
// status word the worker uses to hand control back to the reactor (§4.D).
func (c *Conn) SetImprov()    { c.improv.Store(true) }
func (c *Conn) SetTimerFlag() { c.timerFlag.Store(true) }

// effectiveKeepAlive is true only when both the client asked for
// keep-alive and the server is configured to honor it.
func (c *Conn) effectiveKeepAlive() bool {
	return c.keepAliveOn && c.parser.keepAlive
}

// Improv reports and clears the improv flag; the reactor polls this to
// know when it may re-arm the socket (§4.E point 6).
func (c *Conn) Improv() bool { return c.improv.Swap(false) }

// TimerExpired reports and clears whether the last read/write failed,
// signaling the reactor to treat the connection as expired.
func (c *Conn) TimerExpired() bool { return c.timerFlag.Swap(false) }

// NeedsClose reports whether the last ReadOnce/Write call found a real
// reason to tear the connection down (I/O error, peer EOF, malformed
// request, or a request too large for the read buffer) as opposed to
// simply needing another readiness event to finish a partial request or
// a short write. The workerpool consults this before asking the reactor
// to close, so a request that merely arrives across two packets is not
// mistaken for a dead connection.
func (c *Conn) NeedsClose() bool { return c.needClose.Load() }

// NeedsWrite reports whether Process has left pending response bytes for
// Write to drain; the reactor uses this after a ReadReady task completes
// to decide whether to re-arm the socket for EPOLLIN or EPOLLOUT.
func (c *Conn) NeedsWrite() bool { return len(c.writeSegs) > 0 }

// ReadOnce drains the socket into the read buffer and advances the
// parser, matching the original's read_once()+process_read() combined
// contract: it returns true once a full request has been buffered
// (request line, headers, and body if any), false if more data is still
// needed or the connection should be torn down.
func (c *Conn) ReadOnce() bool {
	c.setState(ConnReading)
	c.needClose.Store(false)

	for {
		if c.readIdx >= len(c.readBuf) {
			// Request doesn't fit the fixed 2 KiB buffer; streaming
			// bodies larger than the read buffer are a non-goal (§1),
			// so this is treated as a hard parse failure, not "more to
			// come".
			c.needClose.Store(true)
			return false
		}
		n, err := c.tr.Read(c.readBuf[c.readIdx:])
		c.readIdx += n

		if n > 0 {
			// Re-run the parser after every chunk, not only once the
			// transport is drained to EAGAIN: a blocking Transport (the
			// portable fallback reactor's net.Conn) never returns
			// ErrWouldBlock, so waiting for it would block a connection
			// that already has a complete request buffered.
			done, bad := c.parseBuffered()
			if bad {
				c.needClose.Store(true)
				return false
			}
			if done {
				return true
			}
		}

		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				return false
			}
			c.needClose.Store(true)
			return false
		}
		if n == 0 {
			c.needClose.Store(true)
			return false
		}
	}
}

// parseBuffered runs the parser over whatever has been read so far.
// done is true once RequestLine, Header, and (if needed) Body have all
// completed; bad is true only when the bytes read so far are malformed,
// never merely incomplete — an incomplete request (LineOpen, or a body
// still short of Content-Length) reports (false, false) so the caller
// re-arms for another readiness event instead of closing.
func (c *Conn) parseBuffered() (done, bad bool) {
	for {
		switch c.parser.state {
		case StateRequestLine, StateHeader:
			status, line := c.parser.nextLine(c.readBuf[:c.readIdx], c.readIdx)
			switch status {
			case LineBad:
				return false, true
			case LineOpen:
				return false, false
			case LineOK:
				var err error
				if c.parser.state == StateRequestLine {
					err = c.parser.parseRequestLine(line)
				} else {
					var lineDone bool
					lineDone, err = c.parser.parseHeader(line)
					if err == nil && lineDone {
						return true, false
					}
				}
				if err != nil {
					return false, true
				}
			}
		case StateBody:
			have := c.readIdx - c.parser.startLine
			if have < c.parser.contentLength {
				return false, false
			}
			c.parser.bodyStart = c.parser.startLine
			return true, false
		}
	}
}

// Process runs the fully-buffered request to completion, matching the
// original's process(): it resolves the route, prepares a response (error
// page, static file, or login/register result), and leaves the write
// state ready for Write to drain.
func (c *Conn) Process() {
	c.setState(ConnProcessing)

	switch {
	case c.parser.url == "/login" && c.parser.method == MethodPOST:
		c.processLogin()
	case c.parser.url == "/register" && c.parser.method == MethodPOST:
		c.processRegister()
	default:
		c.processStatic()
	}

	c.setState(ConnWriting)
}

func (c *Conn) processStatic() {
	path, err := resolveStaticPath(c.opts.DocRoot, c.parser.url)
	if err != nil {
		c.respondError(403)
		return
	}

	f, err := openStaticFile(path)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.respondError(404)
		case errors.Is(err, ErrForbidden):
			c.respondError(403)
		default:
			c.respondError(500)
		}
		return
	}

	c.mu.Lock()
	c.fileBody = f
	c.mu.Unlock()

	buildOKHeader(&c.resp, int(f.size), c.effectiveKeepAlive())
	if f.size > 0 {
		c.writeSegs = [][]byte{c.resp.bytes(), []byte(f.data)}
	} else {
		c.writeSegs = [][]byte{c.resp.bytes()}
	}
	c.writeOff = 0
}

func (c *Conn) processLogin() {
	form := parseForm(string(c.bodyBytes()))
	ok := c.opts.Users != nil && c.opts.Users.Login(form["user"], form["password"])
	if ok {
		c.parser.url = "/welcome.html"
		c.processStatic()
	} else {
		c.respondPage(400, htmlPage("Login failed", "invalid username or password"))
	}
}

func (c *Conn) processRegister() {
	form := parseForm(string(c.bodyBytes()))
	user, passwd := form["user"], form["password"]
	if user == "" || c.opts.Users == nil {
		c.respondPage(400, htmlPage("Registration failed", "missing fields"))
		return
	}

	err := c.opts.Users.Register(context.Background(), user, passwd)
	switch {
	case err == nil:
		c.respondPage(200, htmlPage("Registered", "registration successful"))
	case errors.Is(err, dbpool.ErrUserExists):
		c.respondPage(400, htmlPage("Registration failed", "username already taken"))
	default:
		if c.opts.Log != nil {
			c.opts.Log.LogFields(logger.ErrorLevel, logrus.Fields{"trace_id": c.traceID}, "httpconn: register failed: %v", err)
		}
		c.respondError(500)
	}
}

func (c *Conn) bodyBytes() []byte {
	if c.parser.contentLength == 0 {
		return nil
	}
	end := c.parser.bodyStart + c.parser.contentLength
	if end > c.readIdx {
		end = c.readIdx
	}
	return c.readBuf[c.parser.bodyStart:end]
}

func (c *Conn) respondError(code int) {
	body := buildErrorResponse(&c.resp, code, false)
	c.writeSegs = [][]byte{c.resp.bytes(), body}
	c.writeOff = 0
	c.parser.keepAlive = false
}

func (c *Conn) respondPage(code int, body string) {
	buildHeader(&c.resp, code, len(body), c.effectiveKeepAlive())
	c.writeSegs = [][]byte{c.resp.bytes(), []byte(body)}
	c.writeOff = 0
}

// Write drains the pending write segments (response headers plus, for
// static files, the memory-mapped body) until either everything has been
// sent or the transport reports it would block. Returns true once fully
// drained.
func (c *Conn) Write() bool {
	c.setState(ConnWriting)
	c.needClose.Store(false)

	for len(c.writeSegs) > 0 {
		seg := c.writeSegs[0][c.writeOff:]
		if len(seg) == 0 {
			c.writeSegs = c.writeSegs[1:]
			c.writeOff = 0
			continue
		}
		n, err := c.tr.Write(seg)
		c.writeOff += n
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				// Short write on a non-blocking socket: the iovec base
				// is already advanced above, so the next WriteReady
				// event resumes exactly where this one left off.
				return false
			}
			c.needClose.Store(true)
			c.closeFile()
			return false
		}
	}

	c.closeFile()

	if c.effectiveKeepAlive() {
		c.resetForNextRequest()
		c.setState(ConnIdle)
		return true
	}
	c.setState(ConnClosed)
	return true
}

func (c *Conn) closeFile() {
	c.mu.Lock()
	f := c.fileBody
	c.fileBody = nil
	c.mu.Unlock()
	if f != nil {
		f.Close()
	}
}

func (c *Conn) resetForNextRequest() {
	c.parser.reset()
	c.readIdx = 0
	c.writeSegs = nil
	c.writeOff = 0
}

// CloseConn tears the connection down: unmaps any in-flight static file and
// closes the transport. Safe to call more than once.
func (c *Conn) CloseConn() error {
	var err error
	c.closeOnce.Do(func() {
		c.closeFile()
		c.setState(ConnClosed)
		activeConnsTotal.Dec()
		err = c.tr.Close()
	})
	return err
}

func parseForm(body string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitAndTrim(body, '&') {
		k, v, ok := cutByte(pair, '=')
		if !ok {
			continue
		}
		out[urlDecode(k)] = urlDecode(v)
	}
	return out
}
