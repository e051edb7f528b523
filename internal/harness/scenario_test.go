package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			sc, err := LoadScenario(f)
			require.NoError(t, err)
			assert.NotEmpty(t, sc.Name)
			assert.NotEmpty(t, sc.Steps)
		})
	}
}

func TestParseScenario_Fields(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: fields
description: every field
correlation_prefix: run
timeout: 2s
config:
  search:
    debounce: 10ms
backend:
  catalog: [a]
  search_latency: { a: 5ms }
  save_latency: 1ms
  fail_submits: true
steps:
  - dispatch: todo/add
    payload: { title: x }
    correlation: c1
    error: boom
  - sleep: 15ms
  - backend:
      accept_saves: [c1]
  - wait: true
assertions:
  - type: error_count
    kind: reducer
    count: 1
`))
	require.NoError(t, err)

	assert.Equal(t, "run", sc.correlationPrefix())
	assert.Equal(t, 2*time.Second, sc.timeout())
	assert.Equal(t, Duration(5*time.Millisecond), sc.Backend.SearchLatency["a"])
	require.NotNil(t, sc.Backend.SaveLatency)
	assert.Equal(t, Duration(time.Millisecond), *sc.Backend.SaveLatency)
	require.NotNil(t, sc.Backend.FailSubmits)
	assert.True(t, *sc.Backend.FailSubmits)
	assert.Equal(t, Duration(15*time.Millisecond), sc.Steps[1].Sleep)
	assert.Equal(t, []string{"c1"}, sc.Steps[2].Backend.AcceptSaves)

	cfg, err := sc.config(nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.SearchDebounce())
}

func TestParseScenario_Defaults(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: defaults
description: nothing optional
steps: [{ wait: true }]
assertions: [{ type: error_count, count: 0 }]
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, sc.timeout())
	assert.Empty(t, sc.correlationPrefix())

	cfg, err := sc.config(nil)
	require.NoError(t, err)
	assert.Equal(t, "replay-last", cfg.Store.Subscribe)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", `
name: x
description: x
stepz: []
`, "field stepz not found"},
		{"missing name", `
description: x
steps: [{ wait: true }]
assertions: [{ type: error_count, count: 0 }]
`, "name is required"},
		{"missing steps", `
name: x
description: x
assertions: [{ type: error_count, count: 0 }]
`, "steps list is required"},
		{"two actions in one step", `
name: x
description: x
steps: [{ wait: true, sleep: 1ms }]
assertions: [{ type: error_count, count: 0 }]
`, "exactly one of"},
		{"payload without dispatch", `
name: x
description: x
steps: [{ wait: true, payload: 1 }]
assertions: [{ type: error_count, count: 0 }]
`, "require dispatch"},
		{"catalog in step", `
name: x
description: x
steps: [{ backend: { catalog: [a] } }]
assertions: [{ type: error_count, count: 0 }]
`, "catalog can only be set"},
		{"bad duration", `
name: x
description: x
steps: [{ sleep: soon }]
assertions: [{ type: error_count, count: 0 }]
`, "invalid duration"},
		{"count required", `
name: x
description: x
steps: [{ wait: true }]
assertions: [{ type: trace_count, action: a }]
`, "non-negative count"},
		{"unknown assertion", `
name: x
description: x
steps: [{ wait: true }]
assertions: [{ type: final_vibes }]
`, "unknown assertion type"},
		{"final_state without slice", `
name: x
description: x
steps: [{ wait: true }]
assertions: [{ type: final_state, expect: 1 }]
`, "slice is required"},
		{"bad inline config", `
name: x
description: x
config: { store: { subscribe: sometimes } }
steps: [{ wait: true }]
assertions: [{ type: error_count, count: 0 }]
`, "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
