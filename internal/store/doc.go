// Package store provides the contract store: the single mutable state of
// the engine.
//
// Two implementations satisfy the Store interface:
//   - MemoryStore: mutex-guarded maps, deep copies in and out
//   - SQLiteStore: durable storage in a single SQLite file
//
// # Critical Patterns
//
// Atomic transitions
//   - Update reads a record, runs a Transition and commits the mutation and
//     its event together, or commits nothing
//   - SQLiteStore opens every transaction with BEGIN IMMEDIATE so two
//     processes sharing a file serialize their read-modify-write steps
//
// Invariants at the boundary
//   - withdrawn and refunded are never both set
//   - a terminal record never changes again
//   - a stored preimage always hashes to the hashlock
//   - violations are rejected with ErrInvariant, whatever the caller did
//
// Deterministic ordering
//   - contracts list in insertion order, then id COLLATE BINARY
//   - events list by seq, a logical counter, never by timestamp
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: events must reference an existing contract
//
// Amounts and timestamps are uint64 and SQLite integers are signed, so both
// are stored as 20-digit zero-padded text. Lexical order on that text is
// numeric order over the whole uint64 range.
package store
