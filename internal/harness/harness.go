package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/config"
	"github.com/roach88/statekit/internal/effect"
	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/store"
	"github.com/roach88/statekit/internal/testutil"
	"github.com/roach88/statekit/internal/todo"
)

// clockStart is the first timestamp a scenario stamps, minus one step.
const clockStart = 1_700_000_000_000

// Option configures Run.
type Option func(*options)

type options struct {
	config    *config.Config
	observers []store.Observer
	monitor   effect.Monitor
	sink      errs.Sink
	hydrator  store.Hydrator
	settled   func(context.Context, *store.Store) error
	logger    *slog.Logger
}

// WithConfig sets the configuration used when the scenario has none inline.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithObserver adds a store observer, such as a journal or metrics collector.
func WithObserver(ob store.Observer) Option {
	return func(o *options) {
		if ob != nil {
			o.observers = append(o.observers, ob)
		}
	}
}

// WithEffectMonitor installs an effect monitor.
func WithEffectMonitor(m effect.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

// WithErrorSink forwards errors to s in addition to recording them.
func WithErrorSink(s errs.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithHydrator starts the run from persisted state instead of the initial
// snapshot. Assertions then see the accumulated state.
func WithHydrator(h store.Hydrator) Option {
	return func(o *options) { o.hydrator = h }
}

// WithSettled calls fn with the store once the last step has settled and
// before the application closes, for example to write a final checkpoint.
func WithSettled(fn func(context.Context, *store.Store) error) Option {
	return func(o *options) { o.settled = fn }
}

// WithLogger sets the store logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// harness is the state of one scenario run.
type harness struct {
	app     *todo.App
	fake    *todo.Fake
	timeout time.Duration
	logger  *slog.Logger
	result  *Result
}

// Run executes a scenario against a fresh todo application and returns the
// result. The returned error covers setup problems and failed waits; failed
// steps and assertions are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := scenario.config(o.config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(todo.EffectNames); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	policy, err := cfg.SubscribePolicy()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	overrides, err := cfg.EffectOptions()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	fake := todo.NewFake(scenario.Backend.Catalog...)
	scenario.Backend.apply(fake)

	recorder := &testutil.Recorder{}
	collector := &errs.Collector{}
	storeOpts := []store.Option{
		store.WithObserver(recorder),
		store.WithErrorSink(errs.Multi(collector, o.sink)),
		store.WithIDGenerator(testutil.NewSequenceGenerator(scenario.correlationPrefix())),
		store.WithClock(testutil.NewClock(clockStart, 1)),
		store.WithSubscribePolicy(policy),
		store.WithLogger(o.logger),
		store.WithScope(ctx),
	}
	for _, ob := range o.observers {
		storeOpts = append(storeOpts, store.WithObserver(ob))
	}
	if o.monitor != nil {
		storeOpts = append(storeOpts, store.WithEffectMonitor(o.monitor))
	}
	if o.hydrator != nil {
		storeOpts = append(storeOpts, store.WithHydrator(o.hydrator))
	}

	app, err := todo.New(todo.Options{
		Backend: fake,
		Store:   storeOpts,
		Settings: todo.Settings{
			SearchDebounce: cfg.SearchDebounce(),
			Overrides:      overrides,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	h := &harness{
		app:     app,
		fake:    fake,
		timeout: scenario.timeout(),
		logger:  o.logger,
		result:  NewResult(),
	}

	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	if err := h.wait(ctx); err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	if o.settled != nil {
		if err := o.settled(ctx, app.Store); err != nil {
			return nil, fmt.Errorf("settled hook: %w", err)
		}
	}

	if err := h.collect(recorder, collector); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *harness) runStep(ctx context.Context, i int, step Step) error {
	switch {
	case step.Dispatch != "":
		h.dispatch(i, step)
	case step.Wait:
		return h.wait(ctx)
	case step.Sleep > 0:
		select {
		case <-time.After(time.Duration(step.Sleep)):
		case <-ctx.Done():
			return ctx.Err()
		}
	case step.Backend != nil:
		step.Backend.apply(h.fake)
	}
	return nil
}

func (h *harness) dispatch(i int, step Step) {
	var opts []action.Option
	if step.Correlation != "" {
		opts = append(opts, action.WithCorrelation(step.Correlation))
	}
	err := h.app.Store.Dispatch(action.New(step.Dispatch, step.Payload, opts...))

	switch {
	case err != nil && step.Error == "":
		h.result.AddError(fmt.Sprintf("steps[%d]: dispatch %s: %v", i, step.Dispatch, err))
	case err == nil && step.Error != "":
		h.result.AddError(fmt.Sprintf("steps[%d]: dispatch %s: expected error containing %q, got none",
			i, step.Dispatch, step.Error))
	case err != nil && !strings.Contains(err.Error(), step.Error):
		h.result.AddError(fmt.Sprintf("steps[%d]: dispatch %s: expected error containing %q, got %v",
			i, step.Dispatch, step.Error, err))
	}

	h.logger.Debug("scenario step dispatched",
		"step", i,
		"action", step.Dispatch,
		"error", err,
	)
}

func (h *harness) wait(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.app.Store.Wait(wctx); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w within %s", ErrTimeout, h.timeout)
		}
		return err
	}
	return nil
}

// collect copies the trace, final state, backend record and errors into
// the result.
func (h *harness) collect(recorder *testutil.Recorder, collector *errs.Collector) error {
	for _, d := range recorder.Dispatches() {
		payload, err := normalize(d.Action.Payload)
		if err != nil {
			return fmt.Errorf("trace seq %d: %w", d.Seq, err)
		}
		h.result.Trace = append(h.result.Trace, TraceEvent{
			Seq:           d.Seq,
			Type:          d.Action.Type,
			CorrelationID: d.Action.Meta.CorrelationID,
			Payload:       payload,
			Changed:       d.Changed,
		})
	}

	data, err := h.app.Store.Serialize()
	if err != nil {
		return fmt.Errorf("serialize final state: %w", err)
	}
	for name, raw := range data {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode slice %s: %w", name, err)
		}
		h.result.State[name] = v
	}

	h.result.Backend = BackendCalls{
		Saved:         h.fake.Saved(),
		Searches:      h.fake.Searches(),
		Submits:       h.fake.Submits(),
		Notifications: h.fake.Notifications(),
	}

	for _, err := range collector.Errors() {
		re := RuntimeError{Message: err.Error()}
		if kind, ok := errs.KindOf(err); ok {
			re.Kind = string(kind)
		}
		h.result.RuntimeErrors = append(h.result.RuntimeErrors, re)
	}
	return nil
}

func (b BackendSpec) apply(f *todo.Fake) {
	queries := make([]string, 0, len(b.SearchLatency))
	for q := range b.SearchLatency {
		queries = append(queries, q)
	}
	sort.Strings(queries)
	for _, q := range queries {
		f.SetSearchLatency(q, time.Duration(b.SearchLatency[q]))
	}
	if b.SaveLatency != nil {
		f.SetSaveLatency(time.Duration(*b.SaveLatency))
	}
	if b.SubmitLatency != nil {
		f.SetSubmitLatency(time.Duration(*b.SubmitLatency))
	}
	if len(b.FailSaves) > 0 {
		f.FailSaves(b.FailSaves...)
	}
	if len(b.AcceptSaves) > 0 {
		f.AcceptSaves(b.AcceptSaves...)
	}
	if b.FailSubmits != nil {
		f.FailSubmits(*b.FailSubmits)
	}
}

// normalize converts v to its plain JSON form so values built in Go and
// values parsed from YAML compare equal.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	return out, nil
}

// ErrTimeout is returned by Run when effects do not settle within the
// scenario timeout.
var ErrTimeout = errors.New("effects did not settle")
