package effect

import "fmt"

// Strategy defines how concurrent triggers of one registration interact.
type Strategy string

const (
	// Merge runs every trigger concurrently with independent completion.
	Merge Strategy = "merge"

	// Concat queues triggers FIFO and runs them one at a time.
	Concat Strategy = "concat"

	// Switch supersedes the in-flight run with the newest trigger.
	Switch Strategy = "switch"

	// Exhaust ignores triggers while a run is in flight.
	// Use for non-idempotent submit-style effects.
	Exhaust Strategy = "exhaust"
)

// ParseStrategy converts a configuration string. Empty defaults to Merge.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st.Normalize(), nil
}

// Validate checks s is a known strategy. Empty is valid and means Merge.
func (s Strategy) Validate() error {
	switch s {
	case Merge, Concat, Switch, Exhaust, "":
		return nil
	default:
		return fmt.Errorf("invalid strategy %q: must be merge, concat, switch, or exhaust", string(s))
	}
}

// Normalize returns Merge for the empty strategy.
func (s Strategy) Normalize() Strategy {
	if s == "" {
		return Merge
	}
	return s
}
