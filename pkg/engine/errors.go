package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Submit once Close has begun.
	ErrClosed = errors.New("engine is closed")

	// ErrNilRef is returned when a nil buffer reference is submitted.
	ErrNilRef = errors.New("nil buffer reference")

	// ErrBadDescriptor is returned for a negative destination descriptor.
	ErrBadDescriptor = errors.New("invalid destination descriptor")

	// ErrShortWrite is reported when the underlying write makes no progress
	// without returning an error.
	ErrShortWrite = errors.New("write made no progress")
)

// WriteError describes an item aborted by a hard error on the underlying
// write. The item's remaining bytes are not retried; the destination may have
// received a truncated region.
type WriteError struct {
	// Fd is the destination descriptor the item targeted.
	Fd int

	// Token is the identity of the aborted item's region.
	Token uint64

	// Written is how many bytes were delivered before the failure.
	Written int

	// Err is the underlying write error.
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to fd %d aborted after %d bytes: %v", e.Fd, e.Written, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
