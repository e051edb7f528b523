package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/reducer"
	"github.com/roach88/statekit/internal/state"
)

func TestRestore_CheckpointPlusTail(t *testing.T) {
	reg := counterRegistry(t)
	j := openTestJournal(t, WithRegistry(reg), WithCheckpointEvery(3))
	ctx := context.Background()

	snap := reg.Initial()
	for i := 0; i < 4; i++ {
		snap = apply(t, j, reg, snap, action.New("increment", nil))
	}
	snap = apply(t, j, reg, snap, action.New("add", 10))
	require.Equal(t, uint64(5), snap.Seq())

	restored, err := j.Restore(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), restored.Seq())
	assert.Equal(t, 14, state.MustGet(restored, state.NewKey[int]("count")))
}

func TestHydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("empty journal", func(t *testing.T) {
		j := openTestJournal(t, WithRegistry(counterRegistry(t)))
		seq, data, err := j.Hydrate(ctx)
		require.NoError(t, err)
		assert.Zero(t, seq)
		assert.Nil(t, data)
	})

	t.Run("with registry replays the tail", func(t *testing.T) {
		reg := counterRegistry(t)
		j := openTestJournal(t, WithRegistry(reg))
		snap := apply(t, j, reg, reg.Initial(), action.New("add", 7))

		seq, data, err := j.Hydrate(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap.Seq(), seq)
		assert.JSONEq(t, "7", string(data["count"]))
	})

	t.Run("without registry returns the latest checkpoint", func(t *testing.T) {
		j := openTestJournal(t)
		require.NoError(t, j.Checkpoint(ctx, 4, state.Data{"count": []byte("4")}))

		seq, data, err := j.Hydrate(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), seq)
		assert.JSONEq(t, "4", string(data["count"]))
	})
}

func TestReplay_Deterministic(t *testing.T) {
	reg := counterRegistry(t)
	j := openTestJournal(t, WithRegistry(reg), WithCheckpointEvery(2))
	ctx := context.Background()

	snap := reg.Initial()
	for _, a := range []action.Action{
		action.New("increment", nil),
		action.New("noop", nil),
		action.New("add", 5),
		action.New("increment", nil),
		action.New("add", 0),
	} {
		snap = apply(t, j, reg, snap, a)
	}

	result, err := j.Replay(ctx, reg)
	require.NoError(t, err)
	assert.True(t, result.Deterministic(), "mismatches: %+v", result.Mismatches)
	assert.Equal(t, 3, result.Applied)
	assert.Equal(t, 1, result.Checkpoints)
	assert.Equal(t, snap.Seq(), result.Snapshot.Seq())
	assert.Equal(t, 7, state.MustGet(result.Snapshot, state.NewKey[int]("count")))
}

func TestReplay_DetectsDrift(t *testing.T) {
	reg := counterRegistry(t)
	j := openTestJournal(t, WithRegistry(reg), WithCheckpointEvery(1))
	ctx := context.Background()

	apply(t, j, reg, reg.Initial(), action.New("increment", nil))

	// A registry whose increment adds two disagrees with the checkpoint.
	drifted := reducer.New()
	key := reducer.MustDefine(drifted, "count", 0)
	require.NoError(t, reducer.HandlePure(drifted, key, action.Type("increment"), func(n int, _ action.Action) int {
		return n + 2
	}))

	result, err := j.Replay(ctx, drifted)
	require.NoError(t, err)
	require.False(t, result.Deterministic())
	assert.Equal(t, uint64(1), result.Mismatches[0].Seq)
	assert.Contains(t, result.Mismatches[0].Reason, "checkpoint differs")
}
