package effect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/state"
)

// Host is the store the runner reads snapshots from and dispatches into.
type Host interface {
	Dispatch(a action.Action) error
	Snapshot() *state.Snapshot
}

// Env is what a handler sees of the store while it runs.
type Env interface {
	// Snapshot returns the current snapshot. It is read-only.
	Snapshot() *state.Snapshot

	// Dispatch dispatches an intermediate action. It fails with ErrCancelled
	// once the run has been superseded or the runner has closed.
	Dispatch(a action.Action) error
}

// Handler reacts to a trigger action. It should return promptly once ctx is
// done. Returned actions are dispatched in order after the handler returns,
// unless the run was cancelled in the meantime.
type Handler func(ctx context.Context, a action.Action, env Env) ([]action.Action, error)

// ErrCancelled is returned by Env.Dispatch after the run was cancelled.
var ErrCancelled = errors.New("effect run cancelled")

// ErrClosed is returned when registering on a closed runner.
var ErrClosed = errors.New("effect runner closed")

// Option configures a registration.
type Option func(*registration)

// WithStrategy sets the concurrency strategy. Default: Merge.
func WithStrategy(s Strategy) Option {
	return func(r *registration) {
		r.strategy = s
	}
}

// WithMaxConcurrent bounds concurrent runs of a merge registration.
// Zero means unbounded. Ignored by the other strategies, which run at most one.
func WithMaxConcurrent(n int64) Option {
	return func(r *registration) {
		r.maxConcurrent = n
	}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSink sets where effect errors are reported. Default: errs.LogSink.
func WithSink(s errs.Sink) RunnerOption {
	return func(r *Runner) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMonitor installs run lifecycle hooks.
func WithMonitor(m Monitor) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.monitor = m
		}
	}
}

// Runner activates registered handlers for scheduled actions.
//
// Thread-safety model:
//   - Register, Schedule, Wait, Close: safe from any goroutine
//   - the drain loop started by Start is the only goroutine making strategy decisions
type Runner struct {
	host    Host
	sink    errs.Sink
	logger  *slog.Logger
	monitor Monitor

	mu      sync.Mutex
	regs    []*registration // registration order, never reordered
	names   map[string]bool
	started bool
	closed  bool

	queue    *mailbox
	tracker  *idleTracker
	runs     sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// NewRunner creates a runner dispatching follow-ups into host.
func NewRunner(host Host, opts ...RunnerOption) *Runner {
	r := &Runner{
		host:     host,
		logger:   slog.Default(),
		monitor:  nopMonitor{},
		names:    make(map[string]bool),
		queue:    newMailbox(),
		tracker:  newIdleTracker(),
		loopDone: make(chan struct{}),
	}
	r.sink = errs.LogSink{}
	for _, opt := range opts {
		opt(r)
	}
	if ls, ok := r.sink.(errs.LogSink); ok && ls.Logger == nil {
		r.sink = errs.LogSink{Logger: r.logger}
	}
	return r
}

// Register adds a handler for actions m matches. Names must be unique.
func (r *Runner) Register(name string, m action.Matcher, h Handler, opts ...Option) error {
	if name == "" || m == nil || h == nil {
		return fmt.Errorf("register effect %q: name, matcher and handler are required", name)
	}

	reg := &registration{name: name, match: m, handler: h}
	for _, opt := range opts {
		opt(reg)
	}
	if err := reg.strategy.Validate(); err != nil {
		return fmt.Errorf("register effect %q: %w", name, err)
	}
	reg.strategy = reg.strategy.Normalize()
	if reg.maxConcurrent < 0 {
		return fmt.Errorf("register effect %q: max concurrent must not be negative", name)
	}
	if reg.strategy == Merge && reg.maxConcurrent > 0 {
		reg.sem = semaphore.NewWeighted(reg.maxConcurrent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.names[name] {
		return fmt.Errorf("register effect %q: duplicate name", name)
	}
	r.names[name] = true
	r.regs = append(r.regs, reg)
	return nil
}

// Registrations returns registration names in order.
func (r *Runner) Registrations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.regs))
	for i, reg := range r.regs {
		names[i] = reg.name
	}
	return names
}

// Start launches the drain loop. Runs derive their context from ctx, so
// cancelling ctx cancels every in-flight run. Start is a no-op after the
// first call.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	go r.loop()
}

// Schedule queues a for effect activation and returns immediately.
// Returns false once the runner is closed.
func (r *Runner) Schedule(a action.Action) bool {
	r.tracker.add(1)
	if !r.queue.Enqueue(a) {
		r.tracker.add(-1)
		return false
	}
	return true
}

// Wait blocks until no trigger is queued and no run is in flight, or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-r.tracker.done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every in-flight run, drops queued triggers and waits for
// handlers to return. Safe to call more than once.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	started := r.started
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if dropped := r.queue.Close(); dropped > 0 {
		r.logger.Debug("effect runner closed with queued triggers", "dropped", dropped)
	}
	if started {
		<-r.loopDone
	}
	r.runs.Wait()
	r.tracker.reset()
}

// loop drains the mailbox. Only this goroutine activates registrations.
func (r *Runner) loop() {
	defer close(r.loopDone)

	for {
		if a, ok := r.queue.TryDequeue(); ok {
			r.activate(a)
			r.tracker.add(-1)
			continue
		}

		select {
		case <-r.ctx.Done():
			return
		case _, open := <-r.queue.Wait():
			if !open && r.queue.Len() == 0 {
				return
			}
		}
	}
}

// activate triggers every registration matching a, in registration order.
func (r *Runner) activate(a action.Action) {
	if r.ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	regs := r.regs
	r.mu.Unlock()

	for _, reg := range regs {
		if !safeMatch(reg.match, a) {
			continue
		}
		r.logger.Debug("effect triggered",
			"effect", reg.name,
			"strategy", string(reg.strategy),
			"action", a.Type,
			"correlation_id", a.Meta.CorrelationID,
		)
		switch reg.strategy {
		case Concat:
			r.enqueueConcat(reg, a)
		case Switch:
			r.startSwitch(reg, a)
		case Exhaust:
			r.startExhaust(reg, a)
		default:
			r.spawn(reg, a, nil)
		}
	}
}

func safeMatch(m action.Matcher, a action.Action) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return m.Match(a)
}

// Idle reports whether no trigger is queued and no run is in flight.
func (r *Runner) Idle() bool {
	select {
	case <-r.tracker.done():
		return true
	default:
		return false
	}
}
