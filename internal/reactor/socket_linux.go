//go:build linux

package reactor

import (
	"net"

	"golang.org/x/sys/unix"
)

// TCP_* option numbers not exported by golang.org/x/sys/unix on every
// arch, grounded on shockwave/pkg/shockwave/socket/tuning_linux.go.
const (
	tcpDeferAccept = 9
	tcpQuickAck    = 12
)

// newListenSocket builds a non-blocking IPv4 listen socket bound to
// addr:port, applying the accept-path tuning shockwave's socket package
// applies to its own listeners (SO_REUSEADDR, TCP_DEFER_ACCEPT) so the
// kernel doesn't hand over a connection until the client has actually
// sent its first byte.
func newListenSocket(addr string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	// Best effort: older kernels and some container runtimes reject
	// SO_REUSEPORT; a single listener works fine without it.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, tcpDeferAccept, 1)

	sa := &unix.SockaddrInet4{Port: port}
	if ip := parseIPv4(addr); ip != nil {
		sa.Addr = *ip
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func parseIPv4(addr string) *[4]byte {
	if addr == "" {
		return nil
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil
	}
	var out [4]byte
	copy(out[:], v4)
	return &out
}

// setQuickAck asks the kernel to send an immediate ACK rather than
// delaying it, matching the original's use after accept() to shave
// latency off the first response on a fresh connection.
func setQuickAck(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, tcpQuickAck, 1)
}
