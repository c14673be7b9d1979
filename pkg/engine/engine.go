// Package engine implements an asynchronous, deduplicated write-behind engine.
//
// The engine accepts references to caller-owned byte regions and a destination
// file descriptor, queues them for background delivery, and returns control to
// the caller immediately. Each destination gets its own long-lived worker
// goroutine and its own FIFO queue, so writes to one destination never delay
// writes to another. A given identity token is never queued twice concurrently
// for the same destination: a second submission blocks until the first
// delivery completes, which is what makes it safe for callers to reuse or
// unmap the region once Drain (or DrainRef) returns.
//
// The engine never copies, frees, or extends the lifetime of submitted memory.
// The caller must keep the region valid and unmodified from Submit until the
// matching completion is observable through Drain, DrainRef, or Close.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/framepipe/internal/logger"
)

// Ref is a stable reference to a caller-owned byte region.
//
// Token is the region's identity for deduplication: two refs with the same
// token are treated as the same logical unit of in-flight data. Use
// buffer.Registry for collision-free tokens, or buffer.Slice for the
// address-derived identity of an ad-hoc region.
type Ref interface {
	// Bytes returns the underlying region. The engine reads it without
	// copying; it must stay valid and unmodified while the ref is pending.
	Bytes() []byte

	// Token returns the region's identity for per-destination deduplication.
	Token() uint64
}

// Metrics receives engine instrumentation callbacks.
//
// Implementations must be safe for concurrent use. A nil Metrics is valid
// and results in zero overhead (see pkg/metrics for the Prometheus-backed
// implementation).
type Metrics interface {
	// ObserveSubmit records an item accepted into a destination's queue.
	ObserveSubmit(fd int, bytes int)

	// ObserveComplete records a finished delivery, successful or not.
	ObserveComplete(fd int, bytes int, duration time.Duration)

	// ObserveWriteError records an item aborted by a hard write error.
	ObserveWriteError(fd int)

	// SetQueueDepth reports the queue depth of a destination after a
	// submit or dequeue.
	SetQueueDepth(fd int, depth int)

	// SetActiveDestinations reports the number of destinations with a
	// running worker.
	SetActiveDestinations(n int)
}

// Engine is an explicit write-behind instance. Multiple independent engines
// may coexist; each owns its destination registry and workers.
//
// All methods are safe for concurrent use.
type Engine struct {
	opts options

	mu      sync.Mutex
	streams map[int]*stream

	// closed flips once when Close begins; submissions are rejected from
	// that point on. running flips once (true to false) after the graceful
	// drain; workers pair every read of it with a condition wake, so the
	// single transition is always observed.
	closed  atomic.Bool
	running atomic.Bool

	closeOnce sync.Once
	stopped   chan struct{}
	wg        sync.WaitGroup
}

// New creates an engine. Workers are started lazily, one per destination,
// on first submission to that destination.
func New(opts ...Option) *Engine {
	e := &Engine{
		opts:    defaultOptions(),
		streams: make(map[int]*stream),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&e.opts)
	}
	e.running.Store(true)
	return e
}

// Submit enqueues a write of ref's bytes to the destination descriptor and
// returns as soon as the item is queued, not when it is written. It never
// blocks on I/O, but it does block while the same token is still pending on
// the same destination (the dedup wait).
//
// Zero-length regions are legal and complete without issuing a write. The
// same token may be pending on different destinations simultaneously.
//
// Returns ErrNilRef or ErrBadDescriptor on invalid arguments, and ErrClosed
// once Close has begun.
func (e *Engine) Submit(ref Ref, fd int) error {
	if ref == nil {
		return ErrNilRef
	}
	if fd < 0 {
		return ErrBadDescriptor
	}

	s, err := e.stream(fd)
	if err != nil {
		return err
	}
	return s.enqueue(ref.Token(), ref.Bytes())
}

// Drain blocks until every destination has delivered everything that was
// pending when Drain was called. Items submitted concurrently with Drain are
// not guaranteed to be included.
func (e *Engine) Drain(ctx context.Context) error {
	for _, s := range e.snapshot() {
		if err := s.awaitIdle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DrainRef blocks until ref's token is no longer pending on any destination,
// regardless of unrelated in-flight traffic. Once it returns, the caller may
// safely reuse or release the region.
func (e *Engine) DrainRef(ctx context.Context, ref Ref) error {
	if ref == nil {
		return ErrNilRef
	}
	token := ref.Token()
	for _, s := range e.snapshot() {
		if err := s.awaitToken(ctx, token); err != nil {
			return err
		}
	}
	return nil
}

// Close drains every destination, stops all workers, and clears the
// destination registry. Items already queued are still written; submissions
// arriving after Close has begun fail with ErrClosed.
//
// Close is idempotent: concurrent and repeated calls block until the first
// shutdown completes and then return nil. Closing an engine that never saw
// a submission is a no-op.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)

		// Graceful flush before stopping the workers. The background
		// context is deliberate: Close's contract is full delivery.
		_ = e.Drain(context.Background())

		e.running.Store(false)
		for _, s := range e.snapshot() {
			s.wakeAll()
		}
		e.wg.Wait()

		e.mu.Lock()
		e.streams = make(map[int]*stream)
		e.mu.Unlock()
		e.opts.observeActiveDestinations(0)

		logger.Debug("write-behind engine stopped")
		close(e.stopped)
	})

	<-e.stopped
	return nil
}

// stream returns the per-destination state for fd, creating it and starting
// its worker on first use.
func (e *Engine) stream(fd int) (*stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return nil, ErrClosed
	}

	s, ok := e.streams[fd]
	if !ok {
		s = newStream(e, fd)
		e.streams[fd] = s
		e.wg.Add(1)
		go s.run()

		logger.Debug("started destination worker", "fd", fd)
		e.opts.observeActiveDestinations(len(e.streams))
	}
	return s, nil
}

// snapshot returns the current destinations without holding the registry
// lock during the callers' waits.
func (e *Engine) snapshot() []*stream {
	e.mu.Lock()
	defer e.mu.Unlock()

	streams := make([]*stream, 0, len(e.streams))
	for _, s := range e.streams {
		streams = append(streams, s)
	}
	return streams
}
