package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/statekit/internal/state"
)

// marshalPayload converts an action payload to JSON TEXT for storage.
// HTML escaping is disabled so stored payloads read like the wire form.
func marshalPayload(payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	// Encoder adds a trailing newline.
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalPayload returns the stored payload as raw JSON, or nil for null.
// Reducers read it back through action.Decode.
func unmarshalPayload(data string) (any, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	if !json.Valid([]byte(data)) {
		return nil, fmt.Errorf("unmarshal payload: invalid JSON")
	}
	return json.RawMessage(data), nil
}

// marshalData converts checkpoint data to JSON TEXT. Map keys are sorted by
// encoding/json, so equal snapshots produce identical text.
func marshalData(data state.Data) (string, error) {
	if data == nil {
		data = state.Data{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalData(text string) (state.Data, error) {
	var data state.Data
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if data == nil {
		data = state.Data{}
	}
	return data, nil
}
