package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/effect"
	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/state"
)

// SubscribePolicy decides what a new subscriber sees first.
type SubscribePolicy int

const (
	// ReplayLast delivers the current snapshot to a new subscriber immediately.
	ReplayLast SubscribePolicy = iota
	// NoReplay waits for the next state change.
	NoReplay
)

// String returns the configuration name of p.
func (p SubscribePolicy) String() string {
	switch p {
	case ReplayLast:
		return "replay-last"
	case NoReplay:
		return "no-replay"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseSubscribePolicy converts a configuration string. Empty means ReplayLast.
func ParseSubscribePolicy(s string) (SubscribePolicy, error) {
	switch s {
	case "", "replay-last":
		return ReplayLast, nil
	case "no-replay":
		return NoReplay, nil
	default:
		return 0, fmt.Errorf("invalid subscribe policy %q: must be replay-last or no-replay", s)
	}
}

// Observer sees every successfully reduced dispatch, including no-ops
// (prev == next). Observers run on the notification drain in sequence order
// and must not block.
type Observer interface {
	Observe(a action.Action, prev, next *state.Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(a action.Action, prev, next *state.Snapshot)

// Observe calls f.
func (f ObserverFunc) Observe(a action.Action, prev, next *state.Snapshot) { f(a, prev, next) }

// Hydrator supplies initial state in plain-data form. Nil data means
// "nothing stored": the registry's initial snapshot is used.
type Hydrator interface {
	Hydrate(ctx context.Context) (seq uint64, data state.Data, err error)
}

// Clock stamps action timestamps in milliseconds.
type Clock interface {
	Now() int64
}

// WallClock reads the system clock.
type WallClock struct{}

// Now returns Unix milliseconds.
func (WallClock) Now() int64 {
	return time.Now().UnixMilli()
}

// Option configures a Store.
type Option func(*Store)

// WithSubscribePolicy sets the subscribe policy. Default: ReplayLast.
func WithSubscribePolicy(p SubscribePolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithErrorSink sets where reducer, effect and subscriber errors are
// reported. Default: errs.LogSink on the store's logger.
func WithErrorSink(sink errs.Sink) Option {
	return func(s *Store) {
		s.sink = sink
	}
}

// WithObserver adds an observer. Observers run in the order added.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithHydrator restores initial state at construction.
func WithHydrator(h Hydrator) Option {
	return func(s *Store) {
		s.hydrator = h
	}
}

// WithIDGenerator sets the generator for correlation ids of actions
// dispatched without one. Default: action.UUIDv7Generator.
func WithIDGenerator(g action.IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithClock sets the timestamp source. Default: WallClock.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScope ties the store to ctx: effects run under it and the store
// closes when it is cancelled.
func WithScope(ctx context.Context) Option {
	return func(s *Store) {
		if ctx != nil {
			s.scope = ctx
		}
	}
}

// WithEffectMonitor installs run lifecycle hooks on the effect runner.
func WithEffectMonitor(m effect.Monitor) Option {
	return func(s *Store) {
		s.monitor = m
	}
}
