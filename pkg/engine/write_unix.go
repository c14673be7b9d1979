//go:build unix

package engine

import "golang.org/x/sys/unix"

// writeFD issues a single write(2) on the destination descriptor. Writes
// interrupted before transferring any byte are retried; everything else,
// including partial progress, is reported to the chunking loop.
func writeFD(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if n < 0 {
			n = 0
		}
		if err == unix.EINTR && n == 0 {
			continue
		}
		return n, err
	}
}
