package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/digest"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("contract not found")

	// ErrDuplicate is returned by Insert when the id is already taken.
	ErrDuplicate = errors.New("contract already exists")

	// ErrInvariant is returned when a write would break a record invariant.
	ErrInvariant = errors.New("contract invariant violated")
)

// Transition mutates c in place and optionally returns an event to append
// in the same atomic step. Returning an error aborts the step: neither the
// mutation nor the event is kept, and the error is returned unchanged.
type Transition func(c *contract.Contract) (*contract.Event, error)

// Store is the keyed contract state plus its append-only event history.
type Store interface {
	// Get returns a copy of the record, or ErrNotFound.
	Get(ctx context.Context, id string) (contract.Contract, error)

	// Insert stores a new record and its creation event atomically.
	// Returns ErrDuplicate if id already exists.
	Insert(ctx context.Context, id string, c contract.Contract, ev contract.Event) error

	// Update applies fn as one atomic read-modify-write and returns the
	// record as committed.
	Update(ctx context.Context, id string, fn Transition) (contract.Contract, error)

	// List returns the records matching f in deterministic order.
	List(ctx context.Context, f Filter) ([]contract.Entry, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Events returns the history of one contract ordered by seq.
	// An unknown id yields an empty slice.
	Events(ctx context.Context, id string) ([]contract.Event, error)

	Close() error
}

// Status selects records by lifecycle state.
type Status string

const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
	StatusRefunded  Status = "refunded"
)

// ParseStatus converts user input to a Status. Empty means StatusAll.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive, StatusExpired, StatusWithdrawn, StatusRefunded:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q (want all, active, expired, withdrawn or refunded)", s)
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Sender   string
	Receiver string
	Status   Status

	// Now is the clock reading StatusExpired is evaluated against.
	Now uint64
}

// Match reports whether c satisfies the filter.
func (f Filter) Match(c contract.Contract) bool {
	if f.Sender != "" && c.Sender != f.Sender {
		return false
	}
	if f.Receiver != "" && c.Receiver != f.Receiver {
		return false
	}

	switch f.Status {
	case StatusActive:
		return c.Active()
	case StatusExpired:
		return c.Active() && c.Expired(f.Now)
	case StatusWithdrawn:
		return c.Withdrawn
	case StatusRefunded:
		return c.Refunded
	}
	return true
}

// checkRecord validates a record on its own.
func checkRecord(c contract.Contract) error {
	if c.Withdrawn && c.Refunded {
		return fmt.Errorf("%w: withdrawn and refunded both set", ErrInvariant)
	}
	if !digest.ValidHashlock(c.Hashlock) || c.Hashlock != digest.NormalizeHashlock(c.Hashlock) {
		return fmt.Errorf("%w: hashlock %q is not normalized SHA-256 hex", ErrInvariant, c.Hashlock)
	}
	if c.Preimage != nil && !digest.VerifyPreimage(*c.Preimage, c.Hashlock) {
		return fmt.Errorf("%w: preimage does not match hashlock", ErrInvariant)
	}
	return nil
}

// checkTransition validates a record change.
func checkTransition(before, after contract.Contract) error {
	if before.Terminal() && !reflect.DeepEqual(before, after) {
		return fmt.Errorf("%w: terminal record modified", ErrInvariant)
	}
	if before.Sender != after.Sender || before.Receiver != after.Receiver ||
		before.Amount != after.Amount || before.Hashlock != after.Hashlock ||
		before.Timelock != after.Timelock || before.LedgerID != after.LedgerID {
		return fmt.Errorf("%w: immutable field modified", ErrInvariant)
	}
	return checkRecord(after)
}

// sealEvent fills the store-assigned fields of ev.
func sealEvent(ev contract.Event, contractID string, seq int64) (contract.Event, error) {
	ev.ContractID = contractID
	ev.Seq = seq
	ev.Detail = cloneDetail(ev.Detail)

	id, err := digest.EventID(contractID, string(ev.Kind), seq, ev.At, ev.Detail)
	if err != nil {
		return contract.Event{}, err
	}
	ev.ID = id
	return ev, nil
}

// cloneDetail copies d, folding empty maps to nil.
func cloneDetail(d map[string]string) map[string]string {
	if len(d) == 0 {
		return nil
	}
	out := make(map[string]string, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
