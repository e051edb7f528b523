// Package effect runs asynchronous side effects in reaction to dispatched
// actions.
//
// ARCHITECTURE:
//
// Mailbox:
// The store hands every successfully reduced action to Runner.Schedule, which
// only appends to a FIFO mailbox. One goroutine drains the mailbox and
// activates matching registrations in registration order. Dispatch therefore
// never waits on effect work, and strategy decisions (supersede, drop, queue)
// are taken in dispatch order.
//
// Strategies, per registration:
//   - merge (default): every trigger runs concurrently
//   - concat: triggers queue FIFO and run one at a time, none dropped
//   - switch: a new trigger cancels the running one; its results are discarded
//   - exhaust: triggers arriving while a run is in flight are ignored
//
// Cancellation is cooperative. A run's context is cancelled when it is
// superseded or the runner closes; after that the run can no longer dispatch,
// and any follow-up actions it returns are discarded.
//
// Follow-up actions inherit the trigger's correlation id when they carry none.
package effect
