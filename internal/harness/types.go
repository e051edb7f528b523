package harness

// TraceEvent is one observed dispatch. Payloads are normalized to plain
// JSON values (maps, slices, float64, string, bool).
type TraceEvent struct {
	Seq           uint64 `json:"seq"`
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Payload       any    `json:"payload,omitempty"`
	Changed       bool   `json:"changed"`
}

// BackendCalls is what the fake backend recorded during a run.
type BackendCalls struct {
	Saved         map[string]bool `json:"saved"`
	Searches      []string        `json:"searches"`
	Submits       int             `json:"submits"`
	Notifications []string        `json:"notifications"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every successful dispatch in sequence order, no-ops
	// included.
	Trace []TraceEvent `json:"trace"`

	// State is the final snapshot, slice name to normalized value.
	State map[string]any `json:"state"`

	// Backend is the fake backend's call record.
	Backend BackendCalls `json:"backend"`

	// RuntimeErrors are the errors reported to the sink, in report order.
	RuntimeErrors []RuntimeError `json:"runtime_errors,omitempty"`

	// Errors are failed steps and assertions. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// RuntimeError is one error that reached the sink. Kind is empty for
// errors outside the store taxonomy.
type RuntimeError struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		State:  make(map[string]any),
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
