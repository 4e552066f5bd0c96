// Package store is the SQLite journal of a Bassline network.
//
// The journal is append-only:
//   - Actions: every action applied through an engine's public API, in order
//   - Events: the propagation events, positioned after the action they follow
//   - Snapshots: labelled Bassline snapshots (structure plus content)
//
// Replay reads the action log back into a fresh engine. Because propagation
// is deterministic for a given network and action order, replaying the log
// over the recorded initial network reproduces the recorded values and
// events.
//
// # Ordering
//
// All queries order by seq ASC. Sequence numbers are journal positions,
// never wall-clock time.
//
// # Encoding
//
// Payloads are canonical JSON (RFC 8785) of the ir object forms, so equal
// records are byte-identical and snapshot hashes are stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
