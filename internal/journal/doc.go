// Package journal provides SQLite-backed durable storage for change
// messages observed on store change channels.
//
// The journal is an append-only log. Each row records one entity entry of a
// change message: the collection, the entity id, the version it reached (0
// for deletes) and the published fields as canonical JSON.
//
// # Ordering
//
//   - Rows are ordered by seq, the autoincrement primary key, which is the
//     order in which the journal received them
//   - received_at is informational; queries never order by it
//   - An entity's rows replay to its last published state, excluding
//     internal fields, which are never published
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package journal
