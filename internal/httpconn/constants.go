// Package httpconn implements the per-connection HTTP/1.1 state machine of
// §4.F: a fixed-buffer request parser, static file serving via
// memory-mapped regions, and the login/register endpoints backed by
// internal/dbpool. Grounded on original_source/HttpConn/http_conn.hpp for
// the parser/response shape and on
// shockwave/pkg/shockwave/http11/connection.go for the Go-idiomatic
// lock-free connection state.
package httpconn

const (
	// ReadBufferSize is the fixed request read buffer, matching the
	// original's READ_BUFFER_SIZE. POST bodies are buffered in place and
	// so are bounded by this capacity per §4.F.
	ReadBufferSize = 2048
	// WriteBufferSize is the fixed response header buffer, matching the
	// original's WRITE_BUFFER_SIZE. The response body itself is sent
	// from the memory-mapped file region, not copied into this buffer.
	WriteBufferSize = 1024
	// MaxFileNameLen mirrors FILENAME_LEN in the original. Resolved
	// static paths are not checked against it.
	MaxFileNameLen = 200
)

// Method is the recognized HTTP request method; only GET and POST are
// handled per §6 ("methods GET and POST").
type Method int

const (
	MethodUnknown Method = iota
	MethodGET
	MethodPOST
)

func (m Method) String() string {
	switch m {
	case MethodGET:
		return "GET"
	case MethodPOST:
		return "POST"
	default:
		return "UNKNOWN"
	}
}

// ParserState is the main parser state machine (§4.F "Parser").
type ParserState int

const (
	StateRequestLine ParserState = iota
	StateHeader
	StateBody
)

// LineStatus is the sub-state-machine result of scanning for a \r\n
// terminator.
type LineStatus int

const (
	LineOK LineStatus = iota
	LineBad
	LineOpen
)

// ConnState is the per-connection lifecycle state of §4.E's state
// diagram.
type ConnState int32

const (
	ConnIdle ConnState = iota
	ConnReading
	ConnProcessing
	ConnWriting
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnReading:
		return "reading"
	case ConnProcessing:
		return "processing"
	case ConnWriting:
		return "writing"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// statusLine maps the handful of statuses named in §7 to their HTTP/1.1
// status line and a small fixed HTML body, matching the original's
// hard-coded strings.
var statusLine = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Server Error",
}

var statusBody = map[int]string{
	400: "<html><body><h1>400 Bad Request</h1></body></html>",
	403: "<html><body><h1>403 Forbidden</h1></body></html>",
	404: "<html><body><h1>404 Not Found</h1></body></html>",
	500: "<html><body><h1>500 Internal Server Error</h1></body></html>",
}
