package testutil

import (
	"sync"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/state"
)

// Dispatch is one observed dispatch.
type Dispatch struct {
	Action  action.Action
	Seq     uint64
	Changed bool
}

// Recorder is a store observer that keeps every dispatch it sees.
//
// Thread-safety: safe for concurrent use via internal mutex.
type Recorder struct {
	mu         sync.Mutex
	dispatches []Dispatch
}

// Observe records a dispatch. prev == next marks a no-op.
func (r *Recorder) Observe(a action.Action, prev, next *state.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches = append(r.dispatches, Dispatch{Action: a, Seq: next.Seq(), Changed: prev != next})
}

// Dispatches returns a copy of everything recorded.
func (r *Recorder) Dispatches() []Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Dispatch, len(r.dispatches))
	copy(out, r.dispatches)
	return out
}

// Types returns the recorded action types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.dispatches))
	for i, d := range r.dispatches {
		out[i] = d.Action.Type
	}
	return out
}

// OfType returns the recorded actions of type typ, in order.
func (r *Recorder) OfType(typ string) []action.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []action.Action
	for _, d := range r.dispatches {
		if d.Action.Type == typ {
			out = append(out, d.Action)
		}
	}
	return out
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches = nil
}
