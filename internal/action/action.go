package action

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Meta carries correlation and timing data for an action.
type Meta struct {
	CorrelationID string `json:"correlation_id"`
	Timestamp     int64  `json:"timestamp"` // unix milliseconds, diagnostics only
}

// Action is a tagged description of an intended transition or event.
// Actions are passed by value; Payload must be treated as read-only.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Meta    Meta   `json:"meta,omitempty"`
}

// Option configures an action built with New.
type Option func(*Action)

// WithCorrelation sets the correlation id.
func WithCorrelation(id string) Option {
	return func(a *Action) {
		a.Meta.CorrelationID = id
	}
}

// WithTimestamp sets the timestamp in unix milliseconds.
func WithTimestamp(ms int64) Option {
	return func(a *Action) {
		a.Meta.Timestamp = ms
	}
}

// New creates an action of the given type.
func New(typ string, payload any, opts ...Option) Action {
	a := Action{Type: typ, Payload: payload}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// FollowUp creates an action produced in reaction to a.
// The correlation id is inherited; the timestamp is left for the store to stamp.
func (a Action) FollowUp(typ string, payload any) Action {
	return Action{
		Type:    typ,
		Payload: payload,
		Meta:    Meta{CorrelationID: a.Meta.CorrelationID},
	}
}

// Compensate creates the action that reverses an optimistic update made by a.
// It carries the caller-supplied original value and a's correlation id, so the
// reducer can restore exactly what a replaced.
func (a Action) Compensate(typ string, original any) Action {
	return a.FollowUp(typ, original)
}

// String returns a compact description for logs.
func (a Action) String() string {
	if a.Meta.CorrelationID == "" {
		return a.Type
	}
	return fmt.Sprintf("%s[%s]", a.Type, a.Meta.CorrelationID)
}

// ErrMissingPayload is returned by Decode when the action has no payload.
var ErrMissingPayload = errors.New("action has no payload")

// Decode returns the payload as T.
//
// Payloads dispatched in-process are returned directly. Payloads that arrived
// over the wire (json.RawMessage or generic maps) are converted through JSON.
func Decode[T any](a Action) (T, error) {
	var zero T
	if a.Payload == nil {
		return zero, fmt.Errorf("decode %s: %w", a.Type, ErrMissingPayload)
	}
	if v, ok := a.Payload.(T); ok {
		return v, nil
	}

	raw, err := json.Marshal(a.Payload)
	if err != nil {
		return zero, fmt.Errorf("decode %s: marshal payload: %w", a.Type, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode %s: %w", a.Type, err)
	}
	return out, nil
}

// Marshal encodes a to its wire form.
func Marshal(a Action) ([]byte, error) {
	if a.Type == "" {
		return nil, fmt.Errorf("marshal action: type is required")
	}
	return json.Marshal(a)
}

// Unmarshal decodes an action from its wire form.
// The payload is kept as json.RawMessage until Decode asks for a concrete type.
func Unmarshal(data []byte) (Action, error) {
	var wire struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
		Meta    Meta            `json:"meta"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return Action{}, fmt.Errorf("unmarshal action: %w", err)
	}
	if wire.Type == "" {
		return Action{}, fmt.Errorf("unmarshal action: type is required")
	}

	a := Action{Type: wire.Type, Meta: wire.Meta}
	if len(wire.Payload) > 0 && string(wire.Payload) != "null" {
		a.Payload = wire.Payload
	}
	return a, nil
}
