package harness

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s[%s] %v\n", event.Seq, event.Type, event.CorrelationID, event.Payload)
		}
	}
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		case AssertErrorCount:
			err = assertErrorCount(result.RuntimeErrors, a)
		case AssertBackend:
			err = assertBackend(result.Backend, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errors
}

// assertTraceContains checks that some traced action has the type, and the
// correlation id and payload when given.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want, err := normalize(a.Payload)
	if err != nil {
		return err
	}
	for _, event := range trace {
		if event.Type != a.Action {
			continue
		}
		if a.Correlation != "" && event.CorrelationID != a.Correlation {
			continue
		}
		if want == nil || matchSubset(event.Payload, want) {
			return nil
		}
	}

	expected := "action " + a.Action
	if a.Correlation != "" {
		expected += " correlated " + a.Correlation
	}
	if want != nil {
		expected += fmt.Sprintf(" with payload %v", want)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions first appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Type]; !seen {
			positions[event.Type] = i + 1 // 1-indexed for readability
		}
	}

	for _, typ := range a.Actions {
		if positions[typ] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", typ),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == a.Action {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks a slice, or a value inside it, against Expect.
// Objects match as subsets; everything else must be equal.
func assertFinalState(st map[string]any, a Assertion) error {
	slice, ok := st[a.Slice]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("slice %q", a.Slice),
			Actual:   "slice not defined",
		}
	}

	actual, err := lookupPath(slice, a.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("path %q in slice %q", a.Path, a.Slice),
			Actual:   err.Error(),
		}
	}
	want, err := normalize(a.Expect)
	if err != nil {
		return err
	}
	if !matchSubset(actual, want) {
		where := a.Slice
		if a.Path != "" {
			where += "." + a.Path
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", where, want),
			Actual:   fmt.Sprintf("%s = %v", where, actual),
		}
	}
	return nil
}

// assertErrorCount checks how many errors reached the sink.
func assertErrorCount(runtime []RuntimeError, a Assertion) error {
	count := 0
	for _, re := range runtime {
		if a.Kind == "" || strings.EqualFold(re.Kind, a.Kind) {
			count++
		}
	}
	if count != *a.Count {
		msgs := make([]string, len(runtime))
		for i, re := range runtime {
			msgs[i] = re.Message
		}
		what := "errors"
		if a.Kind != "" {
			what = strings.ToUpper(a.Kind) + " errors"
		}
		return &AssertionError{
			Type:     AssertErrorCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d (%s)", count, strings.Join(msgs, "; ")),
		}
	}
	return nil
}

// assertBackend checks the fake backend's call record.
func assertBackend(calls BackendCalls, a Assertion) error {
	actual, err := normalize(calls)
	if err != nil {
		return err
	}
	want, err := normalize(a.Expect)
	if err != nil {
		return err
	}
	if !matchSubset(actual, want) {
		return &AssertionError{
			Type:     AssertBackend,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

// lookupPath walks a dotted path through normalized JSON values.
func lookupPath(v any, path string) (any, error) {
	if path == "" {
		return v, nil
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("no field %q", seg)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range (len %d)", seg, len(node))
			}
			v = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q", v, seg)
		}
	}
	return v, nil
}

// matchSubset reports whether actual contains expected. Objects match when
// every expected key matches; lists must have equal length and match
// element-wise; scalars must be equal.
func matchSubset(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, exists := act[k]
			if !exists || !matchSubset(av, ev) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchSubset(act[i], exp[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(actual, expected)
	}
}
