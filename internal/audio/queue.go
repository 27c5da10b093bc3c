package audio

import (
	"context"
	"time"
)

// Queue is a bounded single-producer/single-consumer channel of owned
// chunks (spec.md §5). Capacity is 2×queuelimit; queuelimit defaults to 4
// (see DefaultQueueLimit). A full queue blocks Send, applying backpressure
// to its producer; elements transfer ownership on Send/Receive — no
// buffer is shared across stages.
type Queue struct {
	ch chan *Chunk
}

// DefaultQueueLimit is spec.md §5's default queuelimit.
const DefaultQueueLimit = 4

// NewQueue creates a queue with capacity 2×queuelimit.
func NewQueue(queuelimit int) *Queue {
	if queuelimit <= 0 {
		queuelimit = DefaultQueueLimit
	}
	return &Queue{ch: make(chan *Chunk, 2*queuelimit)}
}

// Send blocks until the chunk is enqueued or ctx is done. Returns
// ctx.Err() on cancellation.
func (q *Queue) Send(ctx context.Context, c *Chunk) error {
	select {
	case q.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues without blocking; returns false if the queue is full.
func (q *Queue) TrySend(c *Chunk) bool {
	select {
	case q.ch <- c:
		return true
	default:
		return false
	}
}

// Receive blocks until a chunk is available, ctx is done, or timeout
// elapses without one arriving — the latter is how a stage detects a
// stall (spec.md §5 "repeated timeouts trigger Stalled"). timeout <= 0
// disables the timeout and only ctx cancellation or channel closure can
// unblock the call.
func (q *Queue) Receive(ctx context.Context, timeout time.Duration) (*Chunk, error) {
	if timeout <= 0 {
		select {
		case c, ok := <-q.ch:
			if !ok {
				return nil, ErrQueueClosed
			}
			return c, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Close closes the queue. The producer must be the one to call Close;
// a subsequent Send will panic per Go channel semantics, which is the
// correct failure mode for a single-producer misuse bug.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports the number of chunks currently queued, used by the
// rate-adjust controller and diagnostics; it is advisory under
// concurrent access.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue's capacity (2×queuelimit).
func (q *Queue) Cap() int {
	return cap(q.ch)
}

var (
	// ErrQueueClosed is returned by Receive once the producer has closed
	// the queue and all buffered chunks have been drained.
	ErrQueueClosed = errQueueClosed{}
	// ErrTimeout is returned by Receive when no chunk arrives within the
	// caller's timeout.
	ErrTimeout = errTimeout{}
)

type errQueueClosed struct{}

func (errQueueClosed) Error() string { return "audio: queue closed" }

type errTimeout struct{}

func (errTimeout) Error() string { return "audio: receive timeout" }
