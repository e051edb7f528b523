package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, Type: "todo/add", CorrelationID: "a", Payload: map[string]any{"title": "milk"}, Changed: true},
		{Seq: 2, Type: "todo/setDone", CorrelationID: "b", Payload: map[string]any{"id": "a", "done": true}, Changed: true},
		{Seq: 2, Type: "todo/setDone", CorrelationID: "c", Payload: map[string]any{"id": "a", "done": true}},
		{Seq: 3, Type: "todo/revertDone", CorrelationID: "b", Payload: map[string]any{"id": "a", "done": false}, Changed: true},
	}
	r.State = map[string]any{
		"counter": float64(2),
		"todos": map[string]any{
			"items": []any{map[string]any{"id": "a", "title": "milk", "done": false}},
		},
	}
	r.Backend = BackendCalls{Saved: map[string]bool{}, Searches: []string{"ab"}, Submits: 1}
	r.RuntimeErrors = []RuntimeError{
		{Kind: "REDUCER", Message: "REDUCER: todos (action=todo/add): title must not be empty"},
		{Kind: "EFFECT", Message: "EFFECT: save: boom"},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertTraceContains, Action: "todo/add"},
		{Type: AssertTraceContains, Action: "todo/revertDone", Correlation: "b", Payload: map[string]any{"done": false}},
		{Type: AssertTraceOrder, Actions: []string{"todo/add", "todo/setDone", "todo/revertDone"}},
		{Type: AssertTraceCount, Action: "todo/setDone", Count: intp(2)},
		{Type: AssertTraceCount, Action: "todo/remove", Count: intp(0)},
		{Type: AssertFinalState, Slice: "counter", Expect: 2},
		{Type: AssertFinalState, Slice: "todos", Path: "items.0", Expect: map[string]any{"title": "milk"}},
		{Type: AssertFinalState, Slice: "todos", Path: "items.0.done", Expect: false},
		{Type: AssertErrorCount, Count: intp(2)},
		{Type: AssertErrorCount, Kind: "reducer", Count: intp(1)},
		{Type: AssertBackend, Expect: map[string]any{"submits": 1, "searches": []any{"ab"}}},
	}
	assert.Empty(t, EvaluateAssertions(sampleResult(), assertions))
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"missing action", Assertion{Type: AssertTraceContains, Action: "todo/remove"}, "not found in trace"},
		{"wrong correlation", Assertion{Type: AssertTraceContains, Action: "todo/add", Correlation: "z"}, "correlated z"},
		{"payload mismatch", Assertion{Type: AssertTraceContains, Action: "todo/add", Payload: map[string]any{"title": "tea"}}, "with payload"},
		{"order", Assertion{Type: AssertTraceOrder, Actions: []string{"todo/revertDone", "todo/add"}}, "should be before"},
		{"order missing", Assertion{Type: AssertTraceOrder, Actions: []string{"todo/saved"}}, "missing action: todo/saved"},
		{"count", Assertion{Type: AssertTraceCount, Action: "todo/add", Count: intp(2)}, "1 occurrences"},
		{"unknown slice", Assertion{Type: AssertFinalState, Slice: "nope", Expect: 1}, "slice not defined"},
		{"bad path", Assertion{Type: AssertFinalState, Slice: "todos", Path: "items.3", Expect: 1}, "out of range"},
		{"state mismatch", Assertion{Type: AssertFinalState, Slice: "counter", Expect: 3}, "counter = 3"},
		{"list length", Assertion{Type: AssertFinalState, Slice: "todos", Path: "items", Expect: []any{}}, "todos.items"},
		{"error kind", Assertion{Type: AssertErrorCount, Kind: "selector", Count: intp(1)}, "1 SELECTOR errors"},
		{"backend", Assertion{Type: AssertBackend, Expect: map[string]any{"submits": 2}}, AssertBackend},
		{"unknown type", Assertion{Type: "nope"}, "unknown assertion type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, msgs, 1)
			assert.Contains(t, msgs[0], tt.want)
			assert.Contains(t, msgs[0], "assertions[0]")
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := assertTraceContains(sampleResult().Trace, Assertion{Type: AssertTraceContains, Action: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "[3] todo/revertDone[b]")
}

func TestMatchSubset(t *testing.T) {
	actual := map[string]any{
		"a": float64(1),
		"b": []any{map[string]any{"x": "y", "z": true}},
	}
	assert.True(t, matchSubset(actual, map[string]any{}))
	assert.True(t, matchSubset(actual, map[string]any{"b": []any{map[string]any{"x": "y"}}}))
	assert.False(t, matchSubset(actual, map[string]any{"c": nil}))
	assert.False(t, matchSubset(actual, map[string]any{"b": []any{}}))
	assert.False(t, matchSubset(actual, []any{}))
	assert.True(t, matchSubset("s", "s"))
	assert.False(t, matchSubset(float64(1), "1"))
}

func TestLookupPath(t *testing.T) {
	v := map[string]any{"items": []any{map[string]any{"id": "a"}}}

	got, err := lookupPath(v, "items.0.id")
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	got, err = lookupPath(v, "")
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = lookupPath(v, "items.x")
	assert.Error(t, err)
	_, err = lookupPath(v, "items.0.id.more")
	assert.Error(t, err)
	_, err = lookupPath(v, "missing")
	assert.Error(t, err)
}
