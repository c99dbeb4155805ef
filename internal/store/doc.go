// Package store provides a SQLite trace journal for scheduling sessions.
//
// The journal is append-only:
//   - sessions: one row per recorded session, with its final trace hash
//   - events: the observer events of each session, keyed by (session_id, seq)
//
// # Ordering
//
// Events are ordered by seq, the position in the session's observer stream.
// Step and element timestamps come from the session's logical clock; wall
// time is never stored, so a replayed scenario produces identical rows.
//
// All queries over events include ORDER BY seq ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Field snapshots are stored as canonical JSON from internal/trace, and every
// event row carries its trace.EventHash.
package store
