package todo

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/effect"
	"github.com/roach88/statekit/internal/state"
	"github.com/roach88/statekit/internal/store"
)

// Effect registration names.
const (
	SaveEffect   = "save"
	SearchEffect = "search"
	SubmitEffect = "submit"
	NotifyEffect = "notify"
)

// EffectNames lists the effects in registration order.
var EffectNames = []string{SaveEffect, SearchEffect, SubmitEffect, NotifyEffect}

// Settings tunes effect registration.
type Settings struct {
	// SearchDebounce delays each search; a newer query inside the window
	// supersedes it before the backend is called.
	SearchDebounce time.Duration

	// Overrides are appended to an effect's default options by name.
	Overrides map[string][]effect.Option
}

// RegisterEffects registers the application effects on s.
func RegisterEffects(s *store.Store, keys Keys, b Backend, settings Settings) error {
	if b == nil {
		return fmt.Errorf("register todo effects: backend is required")
	}

	defaults := Strategies()
	regs := []struct {
		name    string
		match   action.Matcher
		handler effect.Handler
	}{
		{SaveEffect, action.Type(TodoSetDone), saveHandler(keys, b)},
		{SearchEffect, action.Type(SearchQuery), searchHandler(b, settings.SearchDebounce)},
		{SubmitEffect, action.Type(Submit), submitHandler(keys, b)},
		{NotifyEffect, action.Type(TodoSaved, Submitted), notifyHandler(b)},
	}
	for _, r := range regs {
		opts := append([]effect.Option{effect.WithStrategy(defaults[r.name])}, settings.Overrides[r.name]...)
		if err := s.RegisterEffect(r.name, r.match, r.handler, opts...); err != nil {
			return fmt.Errorf("register todo effects: %w", err)
		}
	}
	return nil
}

// saveHandler confirms an optimistic completion. On failure it dispatches a
// compensating revert that carries the value the optimistic update replaced
// and the optimistic action's correlation id.
func saveHandler(keys Keys, b Backend) effect.Handler {
	return func(ctx context.Context, a action.Action, env effect.Env) ([]action.Action, error) {
		p, err := action.Decode[DonePayload](a)
		if err != nil {
			return nil, err
		}
		list, err := state.Get(env.Snapshot(), keys.Todos)
		if err != nil {
			return nil, err
		}
		original, pending := list.Pending[a.Meta.CorrelationID]
		if !pending {
			// The dispatch changed nothing; there is nothing to confirm.
			return nil, nil
		}

		if err := b.SaveDone(ctx, p.ID, p.Done); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return []action.Action{a.Compensate(TodoRevertDone, DonePayload{ID: p.ID, Done: original})}, nil
		}
		return []action.Action{a.FollowUp(TodoSaved, p.ID)}, nil
	}
}

func searchHandler(b Backend, debounce time.Duration) effect.Handler {
	return func(ctx context.Context, a action.Action, _ effect.Env) ([]action.Action, error) {
		q, err := action.Decode[string](a)
		if err != nil {
			return nil, err
		}
		if q == "" {
			return nil, nil
		}
		if err := sleep(ctx, debounce); err != nil {
			return nil, err
		}

		results, err := b.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return []action.Action{a.FollowUp(SearchFailed, err.Error())}, nil
		}
		return []action.Action{a.FollowUp(SearchResults, ResultsPayload{Query: q, Results: results})}, nil
	}
}

func submitHandler(keys Keys, b Backend) effect.Handler {
	return func(ctx context.Context, a action.Action, env effect.Env) ([]action.Action, error) {
		list, err := state.Get(env.Snapshot(), keys.Todos)
		if err != nil {
			return nil, err
		}

		receipt, err := b.Submit(ctx, list.Items)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return []action.Action{a.FollowUp(SubmitFailed, err.Error())}, nil
		}
		return []action.Action{a.FollowUp(Submitted, receipt)}, nil
	}
}

func notifyHandler(b Backend) effect.Handler {
	return func(ctx context.Context, a action.Action, _ effect.Env) ([]action.Action, error) {
		return nil, b.Notify(ctx, fmt.Sprintf("%s:%s", a.Type, a.Meta.CorrelationID))
	}
}
