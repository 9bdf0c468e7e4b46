//go:build !linux

package logger

import "os"

// gettid falls back to the process id on platforms without a cheap thread
// id syscall; it is diagnostic decoration only, never load-bearing.
func gettid() int {
	return os.Getpid()
}
