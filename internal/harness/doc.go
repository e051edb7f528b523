// Package harness runs YAML conformance scenarios against the todo
// application and checks the resulting dispatch trace and final state.
//
// # Scenario Format
//
//	name: optimistic_rollback
//	description: "A rejected save restores the replaced value"
//	backend:
//	  fail_saves: [item-1]
//	steps:
//	  - dispatch: todo/add
//	    payload: { title: milk }
//	    correlation: item-1
//	  - dispatch: todo/setDone
//	    payload: { id: item-1, done: true }
//	  - wait: true
//	assertions:
//	  - type: trace_order
//	    actions: [todo/setDone, todo/revertDone]
//	  - type: final_state
//	    slice: todos
//	    path: items.0.done
//	    expect: false
//
// A step does exactly one thing: dispatch an action, wait for every effect
// to settle, sleep, or adjust the fake backend. The harness always waits
// once more after the last step.
//
// # Assertion Types
//
//   - trace_contains: an action of the type appears, optionally with a
//     matching correlation id and payload (subset match)
//   - trace_order: the actions first appear in the given order
//   - trace_count: an action type appears exactly count times
//   - final_state: a slice (optionally a dotted path inside it) matches
//     expect (subset match for objects)
//   - error_count: count errors reached the sink, optionally of one kind
//   - backend: the fake backend's recorded calls match expect
//
// # Deterministic Testing
//
// Correlation ids come from testutil.SequenceGenerator and timestamps from
// testutil.Clock, so the same scenario produces the same trace on every run
// as long as concurrent effects are separated by wait steps. Timestamps are
// left out of traces so golden files stay readable.
//
// # Usage
//
//	sc, err := harness.LoadScenario("testdata/scenarios/counter.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, sc)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
