// Package store archives decoded trace runs in SQLite.
//
// Every run gets a row in runs (source, timing, outcome and counters) and
// one row in elements per emitted top-level value, in output order. An
// archived run can be re-printed without the original trace.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Listings are ordered by started_at DESC, id DESC; elements by seq ASC.
package store
