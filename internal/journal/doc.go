// Package journal provides SQLite-backed persistence for a store.
//
// The journal is an append-only dispatch log plus periodic checkpoints:
//   - actions: one row per successfully reduced dispatch, no-ops included
//   - checkpoints: the plain-data form of the snapshot at a given seq
//
// A Journal plugs into a store twice. As an observer it appends every
// dispatch; as a hydrator it restores the latest checkpoint and re-applies
// the journaled tail through the reducer registry. Effects never re-run
// during restore or replay.
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq (snapshot sequence), NEVER timestamps
//   - Queries use ORDER BY seq ASC, id ASC so replays see identical order
//
// Idempotent checkpoints:
//   - checkpoints.seq is the primary key; rewriting a seq is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5s for locks
//   - Single connection: SQLite has one writer
package journal
