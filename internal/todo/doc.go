// Package todo is a sample application built on the store: a counter, a
// todo list with optimistic completion, a type-ahead search and a submit
// button.
//
// Effects and their default strategies:
//   - save (concat): persists todo completion; a failure dispatches a
//     compensating revert carrying the value the optimistic update replaced
//   - search (switch): only the latest query may deliver results
//   - submit (exhaust): repeated submits while one is in flight are ignored
//   - notify (merge): fire-and-forget notifications about saved work
//
// All I/O goes through the Backend interface; Fake is an in-memory one.
package todo
