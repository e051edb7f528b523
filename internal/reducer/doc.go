// Package reducer implements the reducer registry: pure transition functions
// registered per state slice and composed into a single all-or-nothing
// snapshot transition.
//
// Handlers run in fixed registration order. Each sees the slice value left by
// the handlers before it within the same dispatch. Slices no handler changed
// keep the exact value of the previous snapshot, and an action that changes
// nothing yields the input snapshot pointer itself. Both properties are what
// selector memoization relies on.
package reducer
