// Package state defines the immutable Snapshot produced by reducer application
// and the typed keys used to address its slices.
//
// A Snapshot is a set of named slices plus a sequence number. Snapshots are
// never mutated: reducer application builds a new Snapshot that shares every
// untouched slice value with its predecessor. Slice types are constrained to
// comparable so "did this slice change" is a plain == check: value equality
// for primitives and small value structs, reference equality for pointers.
package state
