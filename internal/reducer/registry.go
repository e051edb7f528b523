package reducer

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/state"
)

// ReduceFunc transitions one slice. It must be deterministic and free of
// side effects, and must return its input unchanged for actions it ignores.
type ReduceFunc[S comparable] func(current S, a action.Action) (S, error)

// Registry holds slice definitions and their handlers.
//
// Registration is expected to happen before the store starts dispatching.
// It is safe to register concurrently with Reduce; Reduce holds the read lock
// for the whole transition, so reducers must not register handlers.
type Registry struct {
	mu       sync.RWMutex
	slices   []*sliceDef // definition order
	byName   map[string]*sliceDef
	handlers []handler // registration order, never reordered
}

type sliceDef struct {
	name    string
	initial any
	equal   func(a, b any) bool
	encode  func(v any) (json.RawMessage, error)
	decode  func(raw json.RawMessage) (any, error)
}

type handler struct {
	slice string
	match action.Matcher
	apply func(current any, a action.Action) (any, error)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*sliceDef)}
}

// Define declares a slice with its initial value and returns its key.
// Slice names are unique within a registry.
func Define[S comparable](r *Registry, name string, initial S) (state.Key[S], error) {
	if name == "" {
		return state.Key[S]{}, fmt.Errorf("define slice: name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return state.Key[S]{}, fmt.Errorf("define slice: duplicate slice %q", name)
	}

	def := &sliceDef{
		name:    name,
		initial: initial,
		equal: func(a, b any) (same bool) {
			// Interface slice types may hold uncomparable values; those
			// count as changed.
			defer func() {
				if recover() != nil {
					same = false
				}
			}()
			av, aok := a.(S)
			bv, bok := b.(S)
			return aok && bok && av == bv
		},
		encode: func(v any) (json.RawMessage, error) {
			return json.Marshal(v)
		},
		decode: func(raw json.RawMessage) (any, error) {
			var v S
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
	r.slices = append(r.slices, def)
	r.byName[name] = def

	return state.NewKey[S](name), nil
}

// MustDefine is like Define but panics on error.
func MustDefine[S comparable](r *Registry, name string, initial S) state.Key[S] {
	key, err := Define(r, name, initial)
	if err != nil {
		panic(err)
	}
	return key
}

// Handle registers fn to reduce the slice addressed by key for actions m matches.
func Handle[S comparable](r *Registry, key state.Key[S], m action.Matcher, fn ReduceFunc[S]) error {
	if m == nil || fn == nil {
		return fmt.Errorf("handle %q: matcher and reduce function are required", key.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.byName[key.Name()]
	if !ok {
		return fmt.Errorf("handle %q: slice not defined", key.Name())
	}
	if _, ok := def.initial.(S); !ok {
		var zero S
		return fmt.Errorf("handle %q: slice holds %T, key is for %T", key.Name(), def.initial, zero)
	}

	r.handlers = append(r.handlers, handler{
		slice: key.Name(),
		match: m,
		apply: func(current any, a action.Action) (any, error) {
			cur, ok := current.(S)
			if !ok {
				return nil, fmt.Errorf("slice holds %T", current)
			}
			return fn(cur, a)
		},
	})
	return nil
}

// HandlePure registers a reducer that cannot fail.
func HandlePure[S comparable](r *Registry, key state.Key[S], m action.Matcher, fn func(current S, a action.Action) S) error {
	if fn == nil {
		return fmt.Errorf("handle %q: reduce function is required", key.Name())
	}
	return Handle(r, key, m, func(current S, a action.Action) (S, error) {
		return fn(current, a), nil
	})
}

// Slices returns slice names in definition order.
func (r *Registry) Slices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.slices))
	for i, def := range r.slices {
		names[i] = def.name
	}
	return names
}

// Initial returns the sequence-0 snapshot built from every slice's initial value.
func (r *Registry) Initial() *state.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values := make(map[string]any, len(r.slices))
	for _, def := range r.slices {
		values[def.name] = def.initial
	}
	return state.New(0, values)
}

// Reduce applies every matching handler to snap in registration order.
//
// The result is all-or-nothing: if any handler fails, snap is returned with a
// *errs.Error of kind reducer and no partial change survives. When no slice
// ends up different from snap, snap itself is returned with changed=false.
func (r *Registry) Reduce(snap *state.Snapshot, a action.Action) (next *state.Snapshot, changed bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handlers, defs := r.handlers, r.byName

	var work map[string]any
	for _, h := range handlers {
		current, ok := work[h.slice]
		if !ok {
			current, ok = snap.Slice(h.slice)
			if !ok {
				current = defs[h.slice].initial
			}
		}

		out, matched, err := runHandler(h, current, a)
		if err != nil {
			return snap, false, &errs.Error{
				Kind:          errs.KindReducer,
				Op:            h.slice,
				ActionType:    a.Type,
				CorrelationID: a.Meta.CorrelationID,
				Seq:           snap.Seq(),
				Err:           err,
			}
		}
		if !matched {
			continue
		}
		if work == nil {
			work = make(map[string]any)
		}
		work[h.slice] = out
	}

	// Keep only slices that actually differ from snap. Two handlers that
	// cancel each other out leave the slice untouched.
	changes := make(map[string]any, len(work))
	for name, v := range work {
		prev, ok := snap.Slice(name)
		if ok && defs[name].equal(prev, v) {
			continue
		}
		changes[name] = v
	}
	if len(changes) == 0 {
		return snap, false, nil
	}
	return snap.Next(changes), true, nil
}

// runHandler matches and applies one handler, converting panics into errors.
func runHandler(h handler, current any, a action.Action) (out any, matched bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, matched, err = nil, false, errs.FromPanic(rec)
		}
	}()

	if !h.match.Match(a) {
		return nil, false, nil
	}
	out, err = h.apply(current, a)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Encode converts snap to plain data using each slice's JSON form.
func (r *Registry) Encode(snap *state.Snapshot) (state.Data, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := make(state.Data, len(r.slices))
	for _, def := range r.slices {
		v, ok := snap.Slice(def.name)
		if !ok {
			v = def.initial
		}
		raw, err := def.encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode slice %q: %w", def.name, err)
		}
		data[def.name] = raw
	}
	return data, nil
}

// Decode builds a snapshot at seq from plain data. Slices missing from data
// take their initial value; unknown names are rejected.
func (r *Registry) Decode(seq uint64, data state.Data) (*state.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name := range data {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("decode: unknown slice %q", name)
		}
	}

	values := make(map[string]any, len(r.slices))
	for _, def := range r.slices {
		raw, ok := data[def.name]
		if !ok {
			values[def.name] = def.initial
			continue
		}
		v, err := def.decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode slice %q: %w", def.name, err)
		}
		values[def.name] = v
	}
	return state.New(seq, values), nil
}
