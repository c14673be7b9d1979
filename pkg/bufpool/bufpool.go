// Package bufpool provides reusable fixed-size frame buffers.
//
// Streaming submits the same few regions over and over; pooling them keeps
// the write-behind path allocation-free after warmup. The pool hands out
// full-length slices of one configured frame size, which is what the engine's
// identity semantics want: a recycled frame keeps its backing array, so a
// registry-issued token (not the address) should be used to identify it.
package bufpool

import "sync"

// DefaultFrameSize fits a 1920x1080 RGB frame, the common case for the
// streaming CLI.
const DefaultFrameSize = 1920 * 1080 * 3

// Pool manages reusable frame buffers of a single size.
// Safe for concurrent use.
type Pool struct {
	size int
	pool sync.Pool
}

// NewPool creates a pool of frameSize-byte buffers. Sizes below 1 use
// DefaultFrameSize.
func NewPool(frameSize int) *Pool {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	p := &Pool{size: frameSize}
	p.pool = sync.Pool{
		New: func() any {
			buf := make([]byte, p.size)
			return &buf
		},
	}
	return p
}

// FrameSize returns the size of the buffers this pool hands out.
func (p *Pool) FrameSize() int {
	return p.size
}

// Get returns a frame buffer of exactly FrameSize bytes. The caller must not
// hand it back with Put while it is still pending in the engine.
func (p *Pool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool. Buffers of the wrong size are dropped
// rather than pooled.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	full := buf[:p.size]
	p.pool.Put(&full)
}
