//go:build linux || darwin

package logger

import "golang.org/x/sys/unix"

// isTerminal reports whether the fd is attached to a terminal, which
// enables colored output.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), ioctlReadTermios)
	return err == nil
}
