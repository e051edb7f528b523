package effect

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/state"
)

type registration struct {
	name          string
	match         action.Matcher
	handler       Handler
	strategy      Strategy
	maxConcurrent int64
	sem           *semaphore.Weighted

	// mu guards the fields below and makes "is this run still current" plus
	// the follow-up dispatch a single step with respect to supersession.
	mu      sync.Mutex
	current *run            // switch: the run that may still deliver results
	busy    bool            // exhaust: a run is in flight; concat: worker active
	backlog []action.Action // concat: triggers waiting their turn
}

type run struct {
	ctx        context.Context
	cancel     context.CancelFunc
	superseded bool // guarded by registration.mu
}

func (r *Runner) newRun() *run {
	ctx, cancel := context.WithCancel(r.ctx)
	return &run{ctx: ctx, cancel: cancel}
}

// spawn executes one run on its own goroutine. after, if set, runs once the
// run has settled.
func (r *Runner) spawn(reg *registration, a action.Action, rn *run, after ...func()) {
	if rn == nil {
		rn = r.newRun()
	}
	r.tracker.add(1)
	r.runs.Add(1)
	go func() {
		defer r.runs.Done()
		defer r.tracker.add(-1)
		defer rn.cancel()

		r.execute(reg, rn, a)
		for _, fn := range after {
			fn()
		}
	}()
}

func (r *Runner) enqueueConcat(reg *registration, a action.Action) {
	r.tracker.add(1) // released once the backlog entry has been processed

	reg.mu.Lock()
	reg.backlog = append(reg.backlog, a)
	if reg.busy {
		reg.mu.Unlock()
		return
	}
	reg.busy = true
	reg.mu.Unlock()

	r.runs.Add(1)
	go r.concatWorker(reg)
}

// concatWorker runs backlog entries one at a time until the backlog is empty.
func (r *Runner) concatWorker(reg *registration) {
	defer r.runs.Done()

	for {
		reg.mu.Lock()
		if len(reg.backlog) == 0 {
			reg.busy = false
			reg.mu.Unlock()
			return
		}
		a := reg.backlog[0]
		reg.backlog[0] = action.Action{}
		reg.backlog = reg.backlog[1:]
		reg.mu.Unlock()

		if r.ctx.Err() == nil {
			rn := r.newRun()
			r.execute(reg, rn, a)
			rn.cancel()
		} else {
			r.monitor.EffectFinished(reg.name, reg.strategy, OutcomeCancelled, 0)
		}
		r.tracker.add(-1)
	}
}

func (r *Runner) startSwitch(reg *registration, a action.Action) {
	rn := r.newRun()

	reg.mu.Lock()
	if prev := reg.current; prev != nil {
		prev.superseded = true
		prev.cancel()
		r.logger.Debug("effect run superseded", "effect", reg.name, "action", a.Type)
	}
	reg.current = rn
	reg.mu.Unlock()

	r.spawn(reg, a, rn, func() {
		reg.mu.Lock()
		if reg.current == rn {
			reg.current = nil
		}
		reg.mu.Unlock()
	})
}

func (r *Runner) startExhaust(reg *registration, a action.Action) {
	reg.mu.Lock()
	if reg.busy {
		reg.mu.Unlock()
		r.logger.Debug("effect trigger ignored while in flight",
			"effect", reg.name,
			"action", a.Type,
			"correlation_id", a.Meta.CorrelationID,
		)
		r.monitor.EffectFinished(reg.name, reg.strategy, OutcomeDropped, 0)
		return
	}
	reg.busy = true
	reg.mu.Unlock()

	r.spawn(reg, a, nil, func() {
		reg.mu.Lock()
		reg.busy = false
		reg.mu.Unlock()
	})
}

// execute runs the handler and settles its outcome.
func (r *Runner) execute(reg *registration, rn *run, a action.Action) {
	start := time.Now()
	r.monitor.EffectStarted(reg.name, reg.strategy)

	outcome := r.invoke(reg, rn, a)

	r.monitor.EffectFinished(reg.name, reg.strategy, outcome, time.Since(start))
	r.logger.Debug("effect finished",
		"effect", reg.name,
		"action", a.Type,
		"correlation_id", a.Meta.CorrelationID,
		"outcome", string(outcome),
	)
}

func (r *Runner) invoke(reg *registration, rn *run, a action.Action) Outcome {
	if reg.sem != nil {
		if err := reg.sem.Acquire(rn.ctx, 1); err != nil {
			return r.cancelledOutcome(reg, rn)
		}
		defer reg.sem.Release(1)
	}

	env := &runEnv{runner: r, reg: reg, run: rn, trigger: a}
	followUps, err := safeHandle(reg.handler, rn.ctx, a, env)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if rn.ctx.Err() != nil {
		// Superseded or shut down: results and errors are both discarded.
		if rn.superseded {
			return OutcomeSuperseded
		}
		return OutcomeCancelled
	}
	if err != nil {
		r.sink.Report(&errs.Error{
			Kind:          errs.KindEffect,
			Op:            reg.name,
			ActionType:    a.Type,
			CorrelationID: a.Meta.CorrelationID,
			Seq:           r.host.Snapshot().Seq(),
			Err:           err,
		})
		return OutcomeFailed
	}

	for _, f := range followUps {
		if err := r.host.Dispatch(inherit(a, f)); err != nil {
			r.logger.Warn("effect follow-up dispatch failed",
				"effect", reg.name,
				"action", f.Type,
				"correlation_id", a.Meta.CorrelationID,
				"error", err,
			)
			if isClosed(err) {
				break
			}
		}
	}
	return OutcomeOK
}

func (r *Runner) cancelledOutcome(reg *registration, rn *run) Outcome {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if rn.superseded {
		return OutcomeSuperseded
	}
	return OutcomeCancelled
}

func safeHandle(h Handler, ctx context.Context, a action.Action, env Env) (out []action.Action, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, errs.FromPanic(rec)
		}
	}()
	return h(ctx, a, env)
}

// inherit stamps f with the trigger's correlation id when it has none.
func inherit(trigger, f action.Action) action.Action {
	if f.Meta.CorrelationID == "" {
		f.Meta.CorrelationID = trigger.Meta.CorrelationID
	}
	return f
}

// closer is implemented by dispatch errors signalling a closed store.
type closer interface {
	Closed() bool
}

func isClosed(err error) bool {
	var c closer
	return errors.As(err, &c) && c.Closed()
}

type runEnv struct {
	runner  *Runner
	reg     *registration
	run     *run
	trigger action.Action
}

func (e *runEnv) Snapshot() *state.Snapshot {
	return e.runner.host.Snapshot()
}

func (e *runEnv) Dispatch(a action.Action) error {
	e.reg.mu.Lock()
	defer e.reg.mu.Unlock()

	if e.run.ctx.Err() != nil {
		return ErrCancelled
	}
	return e.runner.host.Dispatch(inherit(e.trigger, a))
}
