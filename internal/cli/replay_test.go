package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/journal"
	"github.com/roach88/statekit/internal/todo"
)

// journalFor runs scenario with a fresh journal and returns its path.
func journalFor(t *testing.T, scenario string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "todo.db")
	_, err := execute(t, "run", "--db", db, filepath.Join(scenariosDir, scenario+".yaml"))
	require.NoError(t, err)
	return db
}

func TestReplayDeterministic(t *testing.T) {
	db := journalFor(t, "optimistic_rollback")

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 checkpoints compared")
	assert.Contains(t, out, "✓ Replay is deterministic")
}

func TestReplayJSONWithState(t *testing.T) {
	db := journalFor(t, "counter")

	out, err := execute(t, "replay", "--db", db, "--state", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Deterministic)
	assert.Equal(t, uint64(4), resp.Data.Seq)
	assert.Equal(t, 4, resp.Data.Applied)
	assert.Equal(t, 1, resp.Data.Checkpoints)
	assert.JSONEq(t, "6", string(resp.Data.State["counter"]))
}

func TestReplayDetectsMismatch(t *testing.T) {
	db := journalFor(t, "counter")

	// A dispatch recorded as a no-op that actually changes state.
	reg, _, err := todo.NewRegistry()
	require.NoError(t, err)
	j, err := journal.Open(db, journal.WithRegistry(reg))
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), action.New(todo.CounterIncrement, nil), 4, false))
	require.NoError(t, j.Close())

	out, err := execute(t, "replay", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Replay is NOT deterministic")
}

func TestReplayRequiresDB(t *testing.T) {
	_, err := execute(t, "replay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")

	_, err = execute(t, "replay", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}
