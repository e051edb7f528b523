package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/statekit/internal/errs"
)

// State is the lifecycle state of a Bus.
type State int

const (
	// NotStarted accepts subscriptions but rejects Publish.
	NotStarted State = iota
	// Active delivers published values.
	Active
	// Disposed is terminal: subscribers are released and Publish is rejected.
	Disposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Active:
		return "active"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotActive is returned by Publish outside the Active state.
var ErrNotActive = errors.New("bus is not active")

// ErrDisposed is returned when starting or subscribing to a disposed bus.
var ErrDisposed = errors.New("bus is disposed")

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Bus is an ordered, fault-isolated multicast of T values.
type Bus[T any] struct {
	mu     sync.Mutex
	state  State
	nextID uint64
	subs   []subscriber[T]
}

// New creates a bus in the NotStarted state.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Start moves the bus to Active. Starting an active bus is a no-op.
func (b *Bus[T]) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Disposed:
		return ErrDisposed
	case NotStarted:
		b.state = Active
	}
	return nil
}

// Dispose releases every subscriber and moves the bus to Disposed.
func (b *Bus[T]) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Disposed
	b.subs = nil
}

// State returns the current lifecycle state.
func (b *Bus[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscribe registers fn and returns its id and an idempotent unsubscribe function.
func (b *Bus[T]) Subscribe(fn func(T)) (id uint64, unsubscribe func(), err error) {
	if fn == nil {
		return 0, nil, fmt.Errorf("subscribe: callback is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Disposed {
		return 0, nil, ErrDisposed
	}
	b.nextID++
	id = b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return id, func() { once.Do(func() { b.remove(id) }) }, nil
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			// Copy so an in-flight Publish keeps iterating its own slice.
			subs := make([]subscriber[T], 0, len(b.subs)-1)
			subs = append(subs, b.subs[:i]...)
			subs = append(subs, b.subs[i+1:]...)
			b.subs = subs
			return
		}
	}
}

// Publish delivers v to every current subscriber in registration order.
//
// Subscribers added during a pass are not called for v. Panics are recovered
// and returned, joined, as *errs.Error values of kind subscriber after every
// subscriber has run.
func (b *Bus[T]) Publish(v T) error {
	b.mu.Lock()
	if b.state != Active {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("publish: %w (%s)", ErrNotActive, state)
	}
	subs := b.subs
	b.mu.Unlock()

	var failures []error
	for _, s := range subs {
		if err := deliver(s, v); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func deliver[T any](s subscriber[T], v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errs.Error{
				Kind: errs.KindSubscriber,
				Op:   fmt.Sprintf("subscriber-%d", s.id),
				Err:  errs.FromPanic(r),
			}
		}
	}()
	s.fn(v)
	return nil
}
