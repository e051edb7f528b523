package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/journal"
)

func TestTraceListsCorrelations(t *testing.T) {
	db := journalFor(t, "optimistic_rollback")

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "CORRELATION")
	assert.Contains(t, out, "item-1")
	assert.Contains(t, out, "done-1")
	assert.Contains(t, out, "rename-1")
}

func TestTraceCorrelationTimeline(t *testing.T) {
	db := journalFor(t, "optimistic_rollback")

	out, err := execute(t, "trace", "--db", db, "--correlation", "done-1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "done-1", resp.Data.CorrelationID)

	var types []string
	for _, e := range resp.Data.Timeline {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"todo/setDone", "todo/revertDone"}, types)
	assert.Equal(t, 2, resp.Data.Stats.TotalEvents)
	assert.Equal(t, 2, resp.Data.Stats.Changed)
}

func TestTraceActionFilter(t *testing.T) {
	db := journalFor(t, "optimistic_rollback")

	out, err := execute(t, "trace", "--db", db, "--correlation", "done-1", "--action", "todo/revertDone", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Correlation: done-1")
	assert.Contains(t, out, "todo/revertDone")
	assert.NotContains(t, out, "todo/setDone")
	assert.Contains(t, out, `"done":false`)
	assert.Contains(t, out, "Stats: 1 events (1 changed, 0 unchanged)")
}

func TestTraceUnknownCorrelation(t *testing.T) {
	db := journalFor(t, "counter")

	out, err := execute(t, "trace", "--db", db, "--correlation", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No dispatches found for correlation: nope")
}

func TestTraceMissingDB(t *testing.T) {
	_, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTimelineStats(t *testing.T) {
	timeline := buildTimeline([]journal.Record{
		{ID: 1, Seq: 3, Action: action.New("a", nil), Changed: true},
		{ID: 2, Seq: 3, Action: action.New("b", nil), Changed: false},
		{ID: 3, Seq: 5, Action: action.New("a", nil), Changed: true},
	}, "")
	require.Len(t, timeline, 3)

	stats := timelineStats(timeline)
	assert.Equal(t, TraceStats{TotalEvents: 3, Changed: 2, Unchanged: 1, FirstSeq: 3, LastSeq: 5}, stats)

	assert.Len(t, buildTimeline([]journal.Record{
		{ID: 1, Seq: 1, Action: action.New("a", nil)},
		{ID: 2, Seq: 2, Action: action.New("b", nil)},
	}, "b"), 1)
}
