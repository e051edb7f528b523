package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/reducer"
	"github.com/roach88/statekit/internal/state"
	"github.com/roach88/statekit/internal/testutil"
)

var countKey = state.NewKey[int]("count")

// counterRegistry defines {count:0} with increment, decrement and add.
func counterRegistry(t *testing.T) *reducer.Registry {
	t.Helper()
	reg := reducer.New()
	reducer.MustDefine(reg, "count", 0)
	require.NoError(t, reducer.HandlePure(reg, countKey, action.Type("increment"), func(n int, _ action.Action) int {
		return n + 1
	}))
	require.NoError(t, reducer.HandlePure(reg, countKey, action.Type("decrement"), func(n int, _ action.Action) int {
		return n - 1
	}))
	require.NoError(t, reducer.Handle(reg, countKey, action.Type("add"), func(n int, a action.Action) (int, error) {
		d, err := action.Decode[int](a)
		return n + d, err
	}))
	return reg
}

// newTestStore builds a store with deterministic ids and timestamps.
func newTestStore(t *testing.T, reg *reducer.Registry, opts ...Option) *Store {
	t.Helper()
	base := []Option{
		WithIDGenerator(testutil.NewSequenceGenerator("c")),
		WithClock(testutil.NewClock(1_700_000_000_000, 1)),
	}
	s, err := New(reg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func waitIdle(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

// snapshots collects what a subscriber receives.
type snapshots struct {
	got []*state.Snapshot
}

func (c *snapshots) add(s *state.Snapshot) { c.got = append(c.got, s) }

func (c *snapshots) counts() []int {
	out := make([]int, len(c.got))
	for i, s := range c.got {
		out[i] = state.MustGet(s, countKey)
	}
	return out
}
