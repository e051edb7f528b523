package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/bus"
	"github.com/roach88/statekit/internal/effect"
	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/reducer"
	"github.com/roach88/statekit/internal/selector"
	"github.com/roach88/statekit/internal/state"
)

type closedError struct{}

func (closedError) Error() string { return "store closed" }

// Closed marks the error for the effect runner, which stops dispatching a
// run's remaining follow-ups.
func (closedError) Closed() bool { return true }

// ErrClosed is returned by Dispatch, Subscribe and RegisterEffect after Close.
var ErrClosed error = closedError{}

// Store is a reactive state container.
//
// Thread-safety model:
//   - Dispatch, Snapshot, Subscribe, Select, Serialize, Wait: safe from any goroutine
//   - Close: safe from any goroutine except subscribers and effect handlers
//     of the same store, which Close waits for
type Store struct {
	reg       *reducer.Registry
	policy    SubscribePolicy
	sink      errs.Sink
	observers []Observer
	hydrator  Hydrator
	ids       action.IDGenerator
	clock     Clock
	logger    *slog.Logger
	scope     context.Context
	monitor   effect.Monitor

	// mu is the dispatch lane. It guards reducer application, the closed
	// flag and the order in which notifications are queued.
	mu      sync.Mutex
	closed  bool
	current atomic.Pointer[state.Snapshot]

	bus     *bus.Bus[*state.Snapshot]
	effects *effect.Runner

	notify *notifier

	closeOnce sync.Once
	stopScope func() bool
}

// New creates a store over reg. The initial snapshot comes from the
// hydrator when one is set and has data, otherwise from reg.Initial.
func New(reg *reducer.Registry, opts ...Option) (*Store, error) {
	if reg == nil {
		return nil, fmt.Errorf("new store: registry is required")
	}

	s := &Store{
		reg:    reg,
		policy: ReplayLast,
		ids:    action.UUIDv7Generator{},
		clock:  WallClock{},
		logger: slog.Default(),
		scope:  context.Background(),
		bus:    bus.New[*state.Snapshot](),
		notify: newNotifier(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = errs.LogSink{Logger: s.logger}
	}

	initial, err := s.hydrate()
	if err != nil {
		return nil, fmt.Errorf("new store: %w", err)
	}
	s.current.Store(initial)

	if err := s.bus.Start(); err != nil {
		return nil, fmt.Errorf("new store: %w", err)
	}

	runnerOpts := []effect.RunnerOption{effect.WithSink(s.sink), effect.WithLogger(s.logger)}
	if s.monitor != nil {
		runnerOpts = append(runnerOpts, effect.WithMonitor(s.monitor))
	}
	s.effects = effect.NewRunner(s, runnerOpts...)
	s.effects.Start(s.scope)
	s.stopScope = context.AfterFunc(s.scope, s.Close)

	s.logger.Debug("store created",
		"seq", initial.Seq(),
		"slices", initial.Len(),
		"policy", s.policy.String(),
	)
	return s, nil
}

func (s *Store) hydrate() (*state.Snapshot, error) {
	if s.hydrator == nil {
		return s.reg.Initial(), nil
	}
	seq, data, err := s.hydrator.Hydrate(s.scope)
	if err != nil {
		return nil, fmt.Errorf("hydrate: %w", err)
	}
	if data == nil {
		return s.reg.Initial(), nil
	}
	snap, err := s.reg.Decode(seq, data)
	if err != nil {
		return nil, fmt.Errorf("hydrate: %w", err)
	}
	return snap, nil
}

// Dispatch applies a through every matching reducer as one atomic step.
//
// A missing correlation id is generated and a zero timestamp is stamped
// from the clock. If a reducer fails, the snapshot is left untouched, the
// error is reported to the sink and returned, and no effect is scheduled.
// Otherwise observers and subscribers are notified (subscribers only if
// state changed) and matching effects are scheduled. Notifications are
// delivered before Dispatch returns unless another goroutine, or an outer
// Dispatch on the same call stack, is already delivering; that caller then
// delivers them in order.
func (s *Store) Dispatch(a action.Action) error {
	if a.Type == "" {
		return fmt.Errorf("dispatch: action type is required")
	}
	if a.Meta.CorrelationID == "" {
		a.Meta.CorrelationID = s.ids.Generate()
	}
	if a.Meta.Timestamp == 0 {
		a.Meta.Timestamp = s.clock.Now()
	}

	prev, next, changed, err := s.reduce(a)
	if errors.Is(err, ErrClosed) {
		return err
	}
	if err != nil {
		s.logger.Debug("dispatch rejected",
			"action", a.Type,
			"correlation_id", a.Meta.CorrelationID,
			"seq", prev.Seq(),
			"error", err,
		)
		s.sink.Report(err)
		return err
	}

	s.logger.Debug("dispatch",
		"action", a.Type,
		"correlation_id", a.Meta.CorrelationID,
		"seq", next.Seq(),
		"changed", changed,
	)
	s.drain()
	return nil
}

// reduce runs the reducer phase of a under the lane lock and queues its
// notification. A panic escaping the registry becomes a reducer error.
func (s *Store) reduce(a action.Action) (prev, next *state.Snapshot, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, false, ErrClosed
	}
	prev = s.current.Load()
	defer func() {
		if r := recover(); r != nil {
			next, changed = prev, false
			err = &errs.Error{
				Kind:          errs.KindReducer,
				ActionType:    a.Type,
				CorrelationID: a.Meta.CorrelationID,
				Seq:           prev.Seq(),
				Err:           errs.FromPanic(r),
			}
		}
	}()

	next, changed, err = s.reg.Reduce(prev, a)
	if err != nil {
		return prev, prev, false, err
	}
	if changed {
		s.current.Store(next)
	}
	s.notify.enqueue(notification{action: a, prev: prev, next: next, changed: changed})
	return prev, next, changed, nil
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *state.Snapshot {
	return s.current.Load()
}

// Subscribe registers fn for every state-changing dispatch and returns an
// idempotent unsubscribe function. Under ReplayLast fn first receives the
// current snapshot. fn never sees a snapshot older than one it has seen.
func (s *Store) Subscribe(fn func(*state.Snapshot)) (unsubscribe func(), err error) {
	if fn == nil {
		return nil, fmt.Errorf("subscribe: callback is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	cur := s.current.Load()
	sub := &subscription{fn: fn, since: cur.Seq()}
	id, unsub, err := s.bus.Subscribe(sub.deliver)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	sub.id = id
	if s.policy == ReplayLast {
		s.notify.enqueue(notification{replay: sub, next: cur})
	}
	s.mu.Unlock()

	s.drain()
	return func() {
		sub.cancelled.Store(true)
		unsub()
	}, nil
}

// RegisterEffect adds an effect handler. See effect.Runner.Register.
func (s *Store) RegisterEffect(name string, m action.Matcher, h effect.Handler, opts ...effect.Option) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.effects.Register(name, m, h, opts...)
}

// Effects returns effect registration names in order.
func (s *Store) Effects() []string {
	return s.effects.Registrations()
}

// Select evaluates sel against the current snapshot. Selector errors are
// returned to the caller and not reported to the sink.
func Select[T any](s *Store, sel selector.Selector[T]) (T, error) {
	return sel(s.Snapshot())
}

// Serialize returns the current snapshot in plain-data form.
func (s *Store) Serialize() (state.Data, error) {
	return s.reg.Encode(s.Snapshot())
}

// Wait blocks until every queued notification has been delivered and every
// effect is idle, or ctx is done. Effects that keep re-triggering themselves
// never become idle.
func (s *Store) Wait(ctx context.Context) error {
	for {
		if err := s.effects.Wait(ctx); err != nil {
			return err
		}

		pending, draining, drained := s.notify.status()
		switch {
		case pending && !draining:
			s.drain()
			continue
		case draining:
			select {
			case <-drained:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// Delivering may have scheduled effects after the check above.
		if s.effects.Idle() {
			return nil
		}
	}
}

// Close disposes subscribers and cancels in-flight effects, waiting for
// their handlers to return. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.stopScope != nil {
			s.stopScope()
		}
		s.effects.Close()
		s.bus.Dispose()
		s.logger.Debug("store closed", "seq", s.Snapshot().Seq())
	})
}
