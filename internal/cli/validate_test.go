package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateDefaults(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ built-in defaults")
	assert.Contains(t, out, `"subscribe": "replay-last"`)
}

func TestValidateTestdataConfigs(t *testing.T) {
	for _, name := range []string{"app.cue", "app.yaml"} {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, "validate", filepath.Join("..", "config", "testdata", name))
			require.NoError(t, err)
			assert.Contains(t, out, "✓ ")
			assert.Contains(t, out, `"subscribe": "no-replay"`)
		})
	}
}

func TestValidateConfigFlag(t *testing.T) {
	path := writeConfig(t, "statekit.yaml", "search:\n  debounce: 40ms\n")

	out, err := execute(t, "--config", path, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path)
	assert.Contains(t, out, `"debounce": "40ms"`)
}

func TestValidateSchemaError(t *testing.T) {
	path := writeConfig(t, "statekit.cue", "store: subscribe: \"sometimes\"\n")

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+path)
}

func TestValidateUnknownEffectJSON(t *testing.T) {
	path := writeConfig(t, "statekit.yaml", "effects:\n  upload:\n    strategy: merge\n")

	out, err := execute(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidConfig, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	assert.Nil(t, resp.Data.Config)
	require.Len(t, resp.Data.Errors, 1)
	assert.Contains(t, resp.Data.Errors[0].Message, "unknown effects upload")
	assert.Equal(t, path, resp.Data.Errors[0].File)
}

func TestValidateMissingFile(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "config file not found")
}
