package store

import (
	"sync"

	"github.com/roach88/zkfuzz/internal/ir"
)

// appendRequest is one pending record write. The writer replies on done
// exactly once.
type appendRequest struct {
	rec  ir.Record
	done chan appendReply
}

type appendReply struct {
	rec ir.Record
	err error
}

// appendQueue is a thread-safe FIFO of pending writes.
//
// Campaign workers enqueue from many goroutines; the store's write loop is
// the only consumer. The queue is unbounded so a burst of completions never
// blocks a worker on the writer.
type appendQueue struct {
	mu      sync.Mutex
	pending []appendRequest
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newAppendQueue() *appendQueue {
	return &appendQueue{
		pending: make([]appendRequest, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *appendQueue) Enqueue(r appendRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.pending = append(q.pending, r)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front request without blocking.
func (q *appendQueue) TryDequeue() (appendRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return appendRequest{}, false
	}

	r := q.pending[0]
	// Clear the slot so the backing array doesn't retain the record.
	q.pending[0] = appendRequest{}
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}
	return r, true
}

// Wait returns a channel that signals when requests may be available.
// It is closed once the queue is closed.
func (q *appendQueue) Wait() <-chan struct{} {
	return q.signal
}

// Drained reports whether the queue is closed and empty.
func (q *appendQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.pending) == 0
}

// Len returns the current queue length.
func (q *appendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops further enqueues and wakes the consumer. Requests already
// queued are still delivered.
func (q *appendQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
