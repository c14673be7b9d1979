//go:build windows

package logger

import "syscall"

// isTerminal reports whether the handle is attached to a console.
func isTerminal(fd uintptr) bool {
	var mode uint32
	return syscall.GetConsoleMode(syscall.Handle(fd), &mode) == nil
}
