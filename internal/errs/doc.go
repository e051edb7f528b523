// Package errs defines the error taxonomy shared by the store, its reducers,
// selectors, subscribers and effects, plus the sinks unhandled errors are
// reported to.
//
// Four kinds exist:
//   - reducer: aborts the offending dispatch, the store keeps the
//     pre-dispatch snapshot
//   - effect: caught at the runner boundary, never changes state on its own
//   - selector: returned to the reader that evaluated the selector
//   - subscriber: isolated per subscriber, reported after the notification pass
//
// Only reducer, effect and subscriber errors reach a Sink. Selector errors are
// returned to the caller instead.
package errs
