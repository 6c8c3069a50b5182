// Package ledger defines the replicated data model of a Bankero workspace.
//
// The source of truth is an append-only set of LedgerEvents keyed by a
// globally unique id, plus a table of RateFacts keyed by
// (provider, base, quote, as_of). Devices converge by exchanging full
// snapshots of both:
//
//   - Events form a grow-only set. An id that is already present is never
//     inserted, updated or deleted again.
//   - Rate facts are last-writer-wins per exact key. A different as_of for the
//     same pair adds a new historical point.
//
// Balances and reports are always derived by replaying the ordered event set
// (see Balances). Amounts use shopspring/decimal, never binary floats.
//
// # Timestamps
//
// Timestamps are stored and compared in UTC using the fixed-width TimeLayout so
// that text ordering in the store equals chronological ordering, and two
// spellings of the same instant map to the same rate key.
package ledger
