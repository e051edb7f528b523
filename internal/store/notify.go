package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/bus"
	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/state"
)

// notification is one entry of the drain queue: either a dispatch or the
// initial replay for a new subscriber.
type notification struct {
	action  action.Action
	prev    *state.Snapshot
	next    *state.Snapshot
	changed bool
	replay  *subscription
}

// notifier is the FIFO of undelivered notifications. At most one goroutine
// drains it at a time.
type notifier struct {
	mu       sync.Mutex
	pending  []notification
	draining bool
	drained  chan struct{} // closed when no drain is running
}

func newNotifier() *notifier {
	ch := make(chan struct{})
	close(ch)
	return &notifier{drained: ch}
}

func (q *notifier) enqueue(n notification) {
	q.mu.Lock()
	q.pending = append(q.pending, n)
	q.mu.Unlock()
}

func (q *notifier) status() (pending, draining bool, drained <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0, q.draining, q.drained
}

// begin claims the drain. Returns false if another caller holds it.
func (q *notifier) begin() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		return false
	}
	q.draining = true
	q.drained = make(chan struct{})
	return true
}

// next pops the front notification, or releases the drain when empty.
func (q *notifier) next() (notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		q.draining = false
		close(q.drained)
		return notification{}, false
	}
	n := q.pending[0]
	q.pending[0] = notification{}
	q.pending = q.pending[1:]
	return n, true
}

// subscription filters bus deliveries so a subscriber never sees a
// snapshot at or below one it was already given. since is only touched by
// the goroutine holding the drain.
type subscription struct {
	id        uint64
	fn        func(*state.Snapshot)
	since     uint64
	cancelled atomic.Bool
}

func (sub *subscription) deliver(snap *state.Snapshot) {
	if sub.cancelled.Load() || snap.Seq() <= sub.since {
		return
	}
	sub.since = snap.Seq()
	sub.fn(snap)
}

// drain delivers queued notifications until the queue is empty. Returns
// immediately if another caller is draining.
func (s *Store) drain() {
	if !s.notify.begin() {
		return
	}
	for {
		n, ok := s.notify.next()
		if !ok {
			return
		}
		s.deliver(n)
	}
}

func (s *Store) deliver(n notification) {
	if n.replay != nil {
		s.replay(n.replay, n.next)
		return
	}

	for i, o := range s.observers {
		s.observe(i, o, n)
	}
	if n.changed {
		if err := s.bus.Publish(n.next); err != nil && !errors.Is(err, bus.ErrNotActive) {
			s.reportSubscriberErrors(err, n)
		}
	}
	s.effects.Schedule(n.action)
}

func (s *Store) replay(sub *subscription, snap *state.Snapshot) {
	if sub.cancelled.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.sink.Report(&errs.Error{
				Kind: errs.KindSubscriber,
				Op:   fmt.Sprintf("subscriber-%d", sub.id),
				Seq:  snap.Seq(),
				Err:  errs.FromPanic(r),
			})
		}
	}()
	sub.fn(snap)
}

func (s *Store) observe(i int, o Observer, n notification) {
	defer func() {
		if r := recover(); r != nil {
			s.sink.Report(&errs.Error{
				Kind:          errs.KindSubscriber,
				Op:            fmt.Sprintf("observer-%d", i),
				ActionType:    n.action.Type,
				CorrelationID: n.action.Meta.CorrelationID,
				Seq:           n.next.Seq(),
				Err:           errs.FromPanic(r),
			})
		}
	}()
	o.Observe(n.action, n.prev, n.next)
}

// reportSubscriberErrors reports each failure of a publish pass separately,
// annotated with the dispatch that caused it.
func (s *Store) reportSubscriberErrors(err error, n notification) {
	failures := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		failures = joined.Unwrap()
	}
	for _, f := range failures {
		var e *errs.Error
		if errors.As(f, &e) {
			e.ActionType = n.action.Type
			e.CorrelationID = n.action.Meta.CorrelationID
			e.Seq = n.next.Seq()
		}
		s.sink.Report(f)
	}
}
