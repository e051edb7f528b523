package selector

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Family memoizes parameterized selectors, e.g. "todo by id".
//
// Each parameter gets its own memoized selector built once by build. At most
// size selectors are retained; the least recently used is evicted and rebuilt
// with a cold cache on next use.
type Family[P comparable, T any] struct {
	mu    sync.Mutex
	build func(P) Selector[T]
	cache *lru.Cache[P, Selector[T]]
}

// NewFamily creates a family retaining at most size selectors.
func NewFamily[P comparable, T any](size int, build func(P) Selector[T]) (*Family[P, T], error) {
	if build == nil {
		return nil, fmt.Errorf("selector family: build function is required")
	}
	cache, err := lru.New[P, Selector[T]](size)
	if err != nil {
		return nil, fmt.Errorf("selector family: %w", err)
	}
	return &Family[P, T]{build: build, cache: cache}, nil
}

// Get returns the selector for p, building it on first use.
func (f *Family[P, T]) Get(p P) Selector[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sel, ok := f.cache.Get(p); ok {
		return sel
	}
	sel := f.build(p)
	f.cache.Add(p, sel)
	return sel
}

// Len returns the number of retained selectors.
func (f *Family[P, T]) Len() int {
	return f.cache.Len()
}
