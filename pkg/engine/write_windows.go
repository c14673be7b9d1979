//go:build windows

package engine

import "syscall"

// writeFD issues a single WriteFile on the destination handle.
func writeFD(fd int, p []byte) (int, error) {
	var done uint32
	err := syscall.WriteFile(syscall.Handle(fd), p, &done, nil)
	return int(done), err
}
