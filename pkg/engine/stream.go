package engine

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/framepipe/internal/logger"
)

// item is a queued unit of work: a caller-owned region bound for one
// destination. Immutable once created.
type item struct {
	token uint64
	data  []byte
}

// stream is the per-destination state: a FIFO queue of items, the set of
// tokens currently queued or in flight, and the two conditions the dispatcher,
// worker, and drainers synchronize on. Streams never share state, so
// destinations never contend with each other.
type stream struct {
	eng *Engine
	fd  int

	mu      sync.Mutex
	queue   []item
	pending map[uint64]struct{}

	// hasWork is signaled when the queue becomes non-empty and broadcast at
	// shutdown. done is broadcast whenever a token leaves the pending set;
	// both dedup waiters and drainers sleep on it.
	hasWork *sync.Cond
	done    *sync.Cond
}

func newStream(e *Engine, fd int) *stream {
	s := &stream{
		eng:     e,
		fd:      fd,
		pending: make(map[uint64]struct{}),
	}
	s.hasWork = sync.NewCond(&s.mu)
	s.done = sync.NewCond(&s.mu)
	return s
}

// enqueue is the dispatcher path. It blocks while token is already pending on
// this destination, then appends the item and wakes the worker.
func (s *stream) enqueue(token uint64, data []byte) error {
	s.mu.Lock()
	for {
		if s.eng.closed.Load() || !s.eng.running.Load() {
			s.mu.Unlock()
			return ErrClosed
		}
		if _, dup := s.pending[token]; !dup {
			break
		}
		s.done.Wait()
	}
	s.pending[token] = struct{}{}
	s.queue = append(s.queue, item{token: token, data: data})
	depth := len(s.queue)
	s.mu.Unlock()

	s.hasWork.Signal()

	s.eng.opts.observeSubmit(s.fd, len(data))
	s.eng.opts.setQueueDepth(s.fd, depth)
	return nil
}

// run is the worker loop. One worker per destination; it persists through
// empty-queue periods and exits only when the engine stops with nothing left
// to write. Items are written strictly in submission order.
func (s *stream) run() {
	defer s.eng.wg.Done()

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && s.eng.running.Load() {
			s.hasWork.Wait()
		}
		if len(s.queue) == 0 {
			// Stopping with a drained queue.
			s.mu.Unlock()
			return
		}
		it := s.queue[0]
		s.queue = s.queue[1:]
		depth := len(s.queue)
		// The lock is released before the write so an in-progress write
		// never blocks the dispatcher.
		s.mu.Unlock()

		s.eng.opts.setQueueDepth(s.fd, depth)

		start := time.Now()
		written, err := s.writeItem(it)
		if err != nil {
			s.reportError(it, written, err)
		}

		s.mu.Lock()
		delete(s.pending, it.token)
		s.mu.Unlock()

		// Broadcast, not signal: dedup waiters for this token and drainers
		// for the whole destination may all be asleep here.
		s.done.Broadcast()
		s.hasWork.Signal()

		s.eng.opts.observeComplete(s.fd, written, time.Since(start))
	}
}

// writeItem delivers one region in bounded chunks so a short write is retried
// against the remaining tail. A hard error aborts the rest of the item; the
// bytes already written stay written.
func (s *stream) writeItem(it item) (int, error) {
	total := 0
	for total < len(it.data) {
		n := len(it.data) - total
		if n > s.eng.opts.chunkSize {
			n = s.eng.opts.chunkSize
		}

		w, err := s.eng.opts.write(s.fd, it.data[total:total+n])
		if w > 0 {
			total += w
		}
		if err != nil {
			return total, err
		}
		if w <= 0 {
			return total, ErrShortWrite
		}
	}
	return total, nil
}

// reportError surfaces an aborted item to the caller-visible channels: the
// error handler, the metrics, and the log.
func (s *stream) reportError(it item, written int, err error) {
	s.eng.opts.observeWriteError(s.fd)

	logger.Error("write-behind delivery aborted",
		"fd", s.fd,
		"token", it.token,
		"written", written,
		"length", len(it.data),
		"error", err)

	if s.eng.opts.onError != nil {
		s.eng.opts.onError(WriteError{
			Fd:      s.fd,
			Token:   it.token,
			Written: written,
			Err:     err,
		})
	}
}

// wakeAll wakes the worker and every waiter so they re-evaluate the stop
// condition. Called once by Close after the running flag flips.
func (s *stream) wakeAll() {
	s.mu.Lock()
	s.hasWork.Broadcast()
	s.done.Broadcast()
	s.mu.Unlock()
}

// awaitIdle blocks until this destination's pending set is empty. Every
// queued item has a pending token, so an empty set means a drained queue and
// no write in flight.
func (s *stream) awaitIdle(ctx context.Context) error {
	return s.await(ctx, func() bool { return len(s.pending) == 0 })
}

// awaitToken blocks until token is not pending on this destination.
func (s *stream) awaitToken(ctx context.Context, token uint64) error {
	return s.await(ctx, func() bool {
		_, pending := s.pending[token]
		return !pending
	})
}

// await blocks until the predicate holds. satisfied is evaluated with the
// stream lock held. The condition wait runs in a helper goroutine so the
// caller can honor context cancellation; an abandoned helper wakes on the
// next completion broadcast and exits, and Close broadcasts everything, so
// it never outlives the engine.
func (s *stream) await(ctx context.Context, satisfied func() bool) error {
	s.mu.Lock()
	if satisfied() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for !satisfied() {
			s.done.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
