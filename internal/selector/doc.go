// Package selector derives read views from snapshots.
//
// Selectors are pull-based: nothing is computed until a reader evaluates one.
// Derived selectors memoize with a cache depth of one. They return the cached
// result without touching their inputs when handed the same snapshot pointer
// as last time, and skip the combine function when every input value equals
// the previous one. Input values are compared with ==, so slices holding
// pointers are compared by reference and primitives by value.
//
// Selector graphs are acyclic by construction. A combinator can only take
// selectors that already exist.
package selector
