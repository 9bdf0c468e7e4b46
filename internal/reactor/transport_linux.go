//go:build linux

package reactor

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"

	"github.com/wattproject/watt-httpd/internal/httpconn"
)

// rawConn adapts a raw non-blocking socket fd to httpconn.Transport,
// translating EAGAIN into httpconn.ErrWouldBlock per the edge-triggered
// discipline of §4.E: reads and writes are drained in a loop by the
// caller until this sentinel comes back.
type rawConn struct {
	fd int
}

func (r *rawConn) Read(b []byte) (int, error) {
	n, err := unix.Read(r.fd, b)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, httpconn.ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *rawConn) Write(b []byte) (int, error) {
	n, err := unix.Write(r.fd, b)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return n, httpconn.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (r *rawConn) Close() error {
	return unix.Close(r.fd)
}
