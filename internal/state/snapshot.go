package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Key is a typed handle naming one slice of the snapshot.
type Key[S comparable] struct {
	name string
}

// NewKey creates a key for the slice called name.
func NewKey[S comparable](name string) Key[S] {
	return Key[S]{name: name}
}

// Name returns the slice name.
func (k Key[S]) Name() string {
	return k.name
}

// Snapshot is the full managed state at one logical instant.
type Snapshot struct {
	seq    uint64
	slices map[string]any
}

// New creates a snapshot at sequence seq holding a copy of slices.
// Only reducers and the store should build snapshots.
func New(seq uint64, slices map[string]any) *Snapshot {
	return &Snapshot{seq: seq, slices: maps.Clone(slices)}
}

// Next returns a snapshot one sequence after s with the given slices replaced.
// Slices absent from changes keep the exact values s holds.
func (s *Snapshot) Next(changes map[string]any) *Snapshot {
	next := make(map[string]any, len(s.slices))
	for k, v := range s.slices {
		next[k] = v
	}
	for k, v := range changes {
		next[k] = v
	}
	return &Snapshot{seq: s.seq + 1, slices: next}
}

// Seq returns the sequence number. It increases by one per state-changing dispatch.
func (s *Snapshot) Seq() uint64 {
	if s == nil {
		return 0
	}
	return s.seq
}

// Slice returns the raw value of the named slice.
func (s *Snapshot) Slice(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.slices[name]
	return v, ok
}

// Names returns slice names in sorted order.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.slices))
}

// Len returns the number of slices.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.slices)
}

// Get returns the value of the slice addressed by key.
func Get[S comparable](s *Snapshot, key Key[S]) (S, error) {
	var zero S
	raw, ok := s.Slice(key.name)
	if !ok {
		return zero, fmt.Errorf("slice %q not present in snapshot", key.name)
	}
	v, ok := raw.(S)
	if !ok {
		return zero, fmt.Errorf("slice %q holds %T, not %T", key.name, raw, zero)
	}
	return v, nil
}

// MustGet is like Get but panics on a missing or mistyped slice.
func MustGet[S comparable](s *Snapshot, key Key[S]) S {
	v, err := Get(s, key)
	if err != nil {
		panic(err)
	}
	return v
}

// Data is the plain-data form of a snapshot: slice name to JSON document.
// Persistence collaborators store and return Data; the store never performs I/O.
type Data map[string]json.RawMessage
