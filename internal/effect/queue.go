package effect

import (
	"sync"

	"github.com/roach88/statekit/internal/action"
)

// mailbox is a thread-safe FIFO of trigger actions.
//
// The mailbox is unbounded so cascading follow-up dispatches never block the
// dispatching goroutine. A buffered signal channel enables context-aware
// waiting in the drain loop.
type mailbox struct {
	mu      sync.Mutex
	actions []action.Action
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newMailbox() *mailbox {
	return &mailbox{
		actions: make([]action.Action, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends a. Returns false if the mailbox is closed.
func (q *mailbox) Enqueue(a action.Action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.actions = append(q.actions, a)

	// Non-blocking: the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front action without blocking.
func (q *mailbox) TryDequeue() (action.Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.actions) == 0 {
		return action.Action{}, false
	}
	a := q.actions[0]

	// Clear the slot so the payload can be collected.
	q.actions[0] = action.Action{}
	if len(q.actions) == 1 {
		q.actions = q.actions[:0]
	} else {
		q.actions = q.actions[1:]
	}
	return a, true
}

// Wait returns a channel signalled when actions may be available.
// It is closed when the mailbox closes.
func (q *mailbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued actions.
func (q *mailbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Close rejects further enqueues and wakes waiters. Returns the number of
// actions that were still queued.
func (q *mailbox) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}
	q.closed = true
	close(q.signal)
	dropped := len(q.actions)
	q.actions = nil
	return dropped
}
