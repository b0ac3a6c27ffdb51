package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashLength is the length of every hex-encoded SHA-256 digest.
const HashLength = 64

// DomainEvent is the domain prefix for content-addressed event identity.
// Version suffix enables future algorithm migration.
const DomainEvent = "timelock/event/v1"

// Hash returns the lower-case hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString hashes the UTF-8 bytes of s.
func HashString(s string) string {
	return Hash([]byte(s))
}

// NormalizeHashlock lower-cases the hex digits of a hashlock so that
// comparisons against Hash output never fail on letter case.
func NormalizeHashlock(hashlock string) string {
	return strings.ToLower(hashlock)
}

// ValidHashlock reports whether h is exactly 64 hex characters.
// Either letter case is accepted; callers normalize before storing.
func ValidHashlock(h string) bool {
	if len(h) != HashLength {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// VerifyPreimage reports whether preimage hashes to hashlock.
func VerifyPreimage(preimage, hashlock string) bool {
	return HashString(preimage) == NormalizeHashlock(hashlock)
}

// CommitmentID derives the deterministic id of a contract.
//
// Layout (frozen, it is the addressing scheme):
//
//	SHA256(sender ‖ receiver ‖ LE64(amount) ‖ hashlock ‖ LE64(timelock))
//
// Strings contribute their raw UTF-8 bytes with no separator. Identical
// tuples always collide to the same id, which is what makes a retried
// creation request detectable as a duplicate.
func CommitmentID(sender, receiver string, amount uint64, hashlock string, timelock uint64) string {
	var word [8]byte

	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte(receiver))
	binary.LittleEndian.PutUint64(word[:], amount)
	h.Write(word[:])
	h.Write([]byte(hashlock))
	binary.LittleEndian.PutUint64(word[:], timelock)
	h.Write(word[:])
	return hex.EncodeToString(h.Sum(nil))
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed id of a contract event.
// The id is stable across restarts and replays given the same inputs.
func EventID(commitmentID, kind string, seq int64, at uint64, detail map[string]string) (string, error) {
	det := make(map[string]any, len(detail))
	for k, v := range detail {
		det[k] = v
	}

	obj := map[string]any{
		"contract_id": commitmentID,
		"kind":        kind,
		"seq":         seq,
		"at":          at,
		"detail":      det,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(commitmentID, kind string, seq int64, at uint64, detail map[string]string) string {
	id, err := EventID(commitmentID, kind, seq, at, detail)
	if err != nil {
		panic(err)
	}
	return id
}
