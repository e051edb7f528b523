package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/reducer"
	"github.com/roach88/statekit/internal/state"
)

// openTestJournal opens a fresh journal in a temp dir.
func openTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

// counterRegistry defines a "count" slice handling increment and add.
func counterRegistry(t *testing.T) *reducer.Registry {
	t.Helper()
	reg := reducer.New()
	key := reducer.MustDefine(reg, "count", 0)
	require.NoError(t, reducer.HandlePure(reg, key, action.Type("increment"), func(n int, _ action.Action) int {
		return n + 1
	}))
	require.NoError(t, reducer.Handle(reg, key, action.Type("add"), func(n int, a action.Action) (int, error) {
		d, err := action.Decode[int](a)
		return n + d, err
	}))
	return reg
}

// apply reduces a against snap and journals it the way a store would.
func apply(t *testing.T, j *Journal, reg *reducer.Registry, snap *state.Snapshot, a action.Action) *state.Snapshot {
	t.Helper()
	next, _, err := reg.Reduce(snap, a)
	require.NoError(t, err)
	j.Observe(a, snap, next)
	require.NoError(t, j.Err())
	return next
}
