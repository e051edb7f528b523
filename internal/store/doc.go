// Package store owns the current snapshot and serializes every change to it.
//
// ARCHITECTURE:
//
// Dispatch Lane:
// Reducer application happens under a single mutex, so dispatches from any
// number of goroutines are totally ordered and never interleave their
// reducer phases. A dispatch either installs a complete new snapshot or
// leaves the previous one in place.
//
// Notification Drain:
// Each dispatch queues a notification (observers, subscribers, effect
// scheduling) inside the dispatch lane, so the queue is in sequence order.
// Exactly one goroutine drains the queue at a time. A subscriber that
// dispatches re-entrantly only queues; the outer drain delivers it next.
// Subscribers therefore see snapshots in application order, each once.
//
// Effects:
// Matching effect handlers are scheduled after subscribers have been
// notified and run on the effect runner's goroutines, never on the
// dispatching goroutine.
//
// Scope:
// Close (or cancellation of the WithScope context) disposes the bus and
// cancels every in-flight effect. Later dispatches fail with ErrClosed.
package store
