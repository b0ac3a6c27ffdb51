// Package digest provides the hashing primitives of the timelock engine.
//
// This package is pure: no state, no I/O. Every other internal package may
// import digest; digest imports nothing internal.
//
// Key constraints:
//   - All hashes are SHA-256, hex-encoded lower-case, exactly 64 characters
//   - CommitmentID's byte layout is part of the addressing scheme and never changes
//   - Canonical JSON (RFC 8785) is the only serialization used for event identity
package digest
