//go:build linux

package logger

import "golang.org/x/sys/unix"

// gettid returns the OS thread id, mirroring the original's use of the
// Linux-only gettid() syscall in its log line header.
func gettid() int {
	return unix.Gettid()
}
