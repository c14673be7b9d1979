package engine

import "time"

// DefaultChunkSize bounds a single underlying write call. Writing in page
// sized steps keeps short and interrupted writes cheap to resume against the
// remaining tail.
const DefaultChunkSize = 4096

// WriteFunc issues one underlying write of p to the destination descriptor
// and reports how many bytes were transferred. A short count without an error
// is retried against the remaining tail; an error aborts the current item.
type WriteFunc func(fd int, p []byte) (int, error)

type options struct {
	chunkSize int
	write     WriteFunc
	metrics   Metrics
	onError   func(WriteError)
}

func defaultOptions() options {
	return options{
		chunkSize: DefaultChunkSize,
		write:     writeFD,
	}
}

// Option configures an Engine at construction time.
type Option func(*options)

// WithChunkSize sets the maximum number of bytes handed to a single
// underlying write call. Values below 1 keep the default.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithWriteFunc replaces the underlying write call. The default writes
// directly to the file descriptor via the write syscall. Tests use this to
// inject short writes and hard errors.
func WithWriteFunc(fn WriteFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.write = fn
		}
	}
}

// WithMetrics attaches instrumentation callbacks. A nil value disables
// instrumentation with zero overhead.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithErrorHandler registers a callback invoked from the worker goroutine
// whenever an item is aborted by a hard write error. Without a handler the
// failure is logged and counted, the item's remaining bytes are dropped, and
// the worker moves on to the next item.
func WithErrorHandler(fn func(WriteError)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// Nil-safe metrics helpers. Keeping the guards here means the hot paths can
// call unconditionally.

func (o *options) observeSubmit(fd, bytes int) {
	if o.metrics != nil {
		o.metrics.ObserveSubmit(fd, bytes)
	}
}

func (o *options) observeComplete(fd, bytes int, d time.Duration) {
	if o.metrics != nil {
		o.metrics.ObserveComplete(fd, bytes, d)
	}
}

func (o *options) observeWriteError(fd int) {
	if o.metrics != nil {
		o.metrics.ObserveWriteError(fd)
	}
}

func (o *options) setQueueDepth(fd, depth int) {
	if o.metrics != nil {
		o.metrics.SetQueueDepth(fd, depth)
	}
}

func (o *options) observeActiveDestinations(n int) {
	if o.metrics != nil {
		o.metrics.SetActiveDestinations(n)
	}
}
