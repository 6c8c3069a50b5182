// Package store provides SQLite-backed durable storage for a device's
// ledger events and exchange-rate facts.
//
// The store holds two tables:
//   - events: append-only ledger events keyed by UUID; never updated or deleted
//   - rates: rate facts keyed by (provider, base, quote, as_of); last write wins
//
// # Merge Primitives
//
// MergeEvent is insert-if-absent by id and reports whether the row was new.
// UpsertRate overwrites the value at an exact key. Together they make every
// sync transport idempotent: delivering the same snapshot twice, or two
// snapshots in either order, converges to the same contents.
//
// # Deterministic Reads
//
//   - ListEvents orders by effective_at, created_at, id COLLATE BINARY
//   - ListAllRates orders by provider, base, quote, as_of
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
