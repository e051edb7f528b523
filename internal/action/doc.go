// Package action defines the immutable Action value routed through the store,
// the matchers reducers and effects use to select actions, and the
// correlation id generators that link triggering actions to their follow-ups.
//
// Wire shape:
//
//	{"type": "todos/toggle", "payload": {...}, "meta": {"correlation_id": "...", "timestamp": 1700000000000}}
//
// Correlation ids are assigned once, when an external caller dispatches an
// action without one. Follow-up and compensating actions inherit the id of
// the action that produced them; it is never regenerated mid-chain.
package action
