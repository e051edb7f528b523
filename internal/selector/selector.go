package selector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/state"
)

// Selector derives a value from a snapshot. Errors are returned to the reader.
type Selector[T any] func(s *state.Snapshot) (T, error)

// Must evaluates sel and panics on error.
func (sel Selector[T]) Must(s *state.Snapshot) T {
	v, err := sel(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromKey returns a selector reading the slice addressed by key.
func FromKey[S comparable](key state.Key[S]) Selector[S] {
	return func(s *state.Snapshot) (S, error) {
		v, err := state.Get(s, key)
		if err != nil {
			return v, errs.New(errs.KindSelector, key.Name(), err)
		}
		return v, nil
	}
}

// Named labels selector errors produced by sel with name.
func Named[T any](name string, sel Selector[T]) Selector[T] {
	return func(s *state.Snapshot) (T, error) {
		v, err := sel(s)
		if err == nil {
			return v, nil
		}
		var e *errs.Error
		if errors.As(err, &e) && e.Kind == errs.KindSelector && e.Op == "" {
			return v, &errs.Error{Kind: errs.KindSelector, Op: name, Seq: e.Seq, Err: e.Err}
		}
		return v, err
	}
}

// Map derives T from a single input.
func Map[A comparable, T any](in Selector[A], combine func(A) T) Selector[T] {
	c := &cell[T]{}
	return func(s *state.Snapshot) (T, error) {
		return c.get(s,
			func() ([]any, error) {
				a, err := in(s)
				return []any{a}, err
			},
			func(args []any) T { return combine(arg[A](args, 0)) },
		)
	}
}

// Combine2 derives T from two inputs.
func Combine2[A, B comparable, T any](a Selector[A], b Selector[B], combine func(A, B) T) Selector[T] {
	c := &cell[T]{}
	return func(s *state.Snapshot) (T, error) {
		return c.get(s,
			func() ([]any, error) {
				av, err := a(s)
				if err != nil {
					return nil, err
				}
				bv, err := b(s)
				return []any{av, bv}, err
			},
			func(args []any) T { return combine(arg[A](args, 0), arg[B](args, 1)) },
		)
	}
}

// Combine3 derives T from three inputs.
func Combine3[A, B, C comparable, T any](a Selector[A], b Selector[B], c Selector[C], combine func(A, B, C) T) Selector[T] {
	m := &cell[T]{}
	return func(s *state.Snapshot) (T, error) {
		return m.get(s,
			func() ([]any, error) {
				av, err := a(s)
				if err != nil {
					return nil, err
				}
				bv, err := b(s)
				if err != nil {
					return nil, err
				}
				cv, err := c(s)
				return []any{av, bv, cv}, err
			},
			func(args []any) T { return combine(arg[A](args, 0), arg[B](args, 1), arg[C](args, 2)) },
		)
	}
}

// CombineN derives T from any number of inputs of the same type.
func CombineN[A comparable, T any](inputs []Selector[A], combine func([]A) T) Selector[T] {
	ins := make([]Selector[A], len(inputs))
	copy(ins, inputs)
	c := &cell[T]{}
	return func(s *state.Snapshot) (T, error) {
		return c.get(s,
			func() ([]any, error) {
				args := make([]any, len(ins))
				for i, in := range ins {
					v, err := in(s)
					if err != nil {
						return nil, err
					}
					args[i] = v
				}
				return args, nil
			},
			func(args []any) T {
				vals := make([]A, len(args))
				for i, v := range args {
					vals[i], _ = v.(A)
				}
				return combine(vals)
			},
		)
	}
}

// arg unpacks an input value. A nil interface-typed input unpacks to its zero value.
func arg[A any](args []any, i int) A {
	v, _ := args[i].(A)
	return v
}

// cell is a depth-1 memo shared by the combinators.
type cell[T any] struct {
	mu    sync.Mutex
	valid bool
	snap  *state.Snapshot
	args  []any
	out   T
}

func (c *cell[T]) get(s *state.Snapshot, inputs func() ([]any, error), compute func([]any) T) (T, error) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.snap == s {
		return c.out, nil
	}

	args, err := inputs()
	if err != nil {
		return zero, err
	}
	if c.valid && sameArgs(c.args, args) {
		c.snap = s
		return c.out, nil
	}

	out, err := safeCompute(compute, args)
	if err != nil {
		return zero, &errs.Error{Kind: errs.KindSelector, Seq: s.Seq(), Err: err}
	}
	c.valid, c.snap, c.args, c.out = true, s, args, out
	return out, nil
}

func safeCompute[T any](compute func([]any) T, args []any) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("combine: %w", errs.FromPanic(r))
		}
	}()
	return compute(args), nil
}

// sameArgs compares input values with ==. Interface-typed inputs holding
// uncomparable dynamic values count as changed.
func sameArgs(prev, next []any) (same bool) {
	if len(prev) != len(next) {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	for i := range prev {
		if prev[i] != next[i] {
			return false
		}
	}
	return true
}
