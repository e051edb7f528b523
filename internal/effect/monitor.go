package effect

import "time"

// Outcome describes how a run ended.
type Outcome string

const (
	// OutcomeOK means the handler returned and its follow-ups were dispatched.
	OutcomeOK Outcome = "ok"
	// OutcomeFailed means the handler returned an error or panicked.
	OutcomeFailed Outcome = "failed"
	// OutcomeSuperseded means a newer switch trigger replaced the run.
	OutcomeSuperseded Outcome = "superseded"
	// OutcomeDropped means an exhaust trigger was ignored; no run started.
	OutcomeDropped Outcome = "dropped"
	// OutcomeCancelled means the runner closed before the run settled.
	OutcomeCancelled Outcome = "cancelled"
)

// Monitor receives run lifecycle events. Implementations must be safe for
// concurrent use and must not block.
type Monitor interface {
	EffectStarted(name string, s Strategy)
	EffectFinished(name string, s Strategy, o Outcome, elapsed time.Duration)
}

type nopMonitor struct{}

func (nopMonitor) EffectStarted(string, Strategy)                          {}
func (nopMonitor) EffectFinished(string, Strategy, Outcome, time.Duration) {}
