// Package contract defines the HTLC data model, the error taxonomy and the
// pure validation rules for create, claim and refund.
//
// Nothing in this package performs I/O or reads a clock: caller identity and
// the current time are always passed in explicitly.
//
// All JSON tags use snake_case. Time values are the host clock unit
// (nanoseconds since epoch), never time.Time.
package contract

// Contract is a single hashed timelock contract record.
//
// Invariants:
//   - Withdrawn and Refunded are never both true
//   - once either flag is set the record is terminal
//   - Hashlock is 64 lower-case hex characters
//   - Preimage, once set, hashes to Hashlock
type Contract struct {
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Amount    uint64  `json:"amount"`
	Hashlock  string  `json:"hashlock"`
	Timelock  uint64  `json:"timelock"`
	Preimage  *string `json:"preimage,omitempty"`
	Withdrawn bool    `json:"withdrawn"`
	Refunded  bool    `json:"refunded"`
	LedgerID  string  `json:"ledger_id"`

	// InFlight is the transient marker set while a claim's or a refund's
	// transfer call is suspended. Orthogonal to Withdrawn/Refunded.
	InFlight *InFlight `json:"in_flight,omitempty"`
}

// Op names the operation holding an in-flight marker.
type Op string

const (
	OpClaim  Op = "claim"
	OpRefund Op = "refund"
)

// InFlight identifies the operation that currently owns a contract.
type InFlight struct {
	Op    Op     `json:"op"`
	Token string `json:"token"`
	Since uint64 `json:"since"`
}

// Active reports whether neither terminal flag is set.
func (c Contract) Active() bool {
	return !c.Withdrawn && !c.Refunded
}

// Terminal reports whether the record can no longer change.
func (c Contract) Terminal() bool {
	return c.Withdrawn || c.Refunded
}

// Expired reports whether the claim window has closed at now.
func (c Contract) Expired(now uint64) bool {
	return now >= c.Timelock
}

// InFlightLive reports whether an in-flight marker still blocks other
// transitions at now. A marker stops blocking grace ns after the later of
// the timelock and the moment it was set, so an operation whose resumption
// never happens cannot leave the record stuck.
func (c Contract) InFlightLive(now, grace uint64) bool {
	if c.InFlight == nil {
		return false
	}
	return now < saturatingAdd(max(c.Timelock, c.InFlight.Since), grace)
}

// Clone returns a deep copy of c.
func (c Contract) Clone() Contract {
	out := c
	if c.Preimage != nil {
		p := *c.Preimage
		out.Preimage = &p
	}
	if c.InFlight != nil {
		f := *c.InFlight
		out.InFlight = &f
	}
	return out
}

// Entry pairs a commitment id with its record.
type Entry struct {
	ID       string   `json:"id"`
	Contract Contract `json:"contract"`
}

// NewContractRequest asks to lock Amount for Receiver.
// The sender is the caller identity, never part of the request.
type NewContractRequest struct {
	Receiver string `json:"receiver" yaml:"receiver"`
	Amount   uint64 `json:"amount" yaml:"amount"`
	Hashlock string `json:"hashlock" yaml:"hashlock"`
	Timelock uint64 `json:"timelock" yaml:"timelock"`
	LedgerID string `json:"ledger_id" yaml:"ledger_id"`
}

// ClaimRequest reveals Preimage to release the funds of LockID.
type ClaimRequest struct {
	LockID   string `json:"lock_id"`
	Preimage string `json:"preimage"`
}

// RefundRequest returns the funds of LockID to its sender.
type RefundRequest struct {
	LockID string `json:"lock_id"`
}

// EventKind names a lifecycle transition recorded in a contract's history.
type EventKind string

const (
	EventCreated          EventKind = "created"
	EventClaimStarted     EventKind = "claim_started"
	EventClaimed          EventKind = "claimed"
	EventClaimFailed      EventKind = "claim_failed"
	EventRefundStarted    EventKind = "refund_started"
	EventRefunded         EventKind = "refunded"
	EventRefundFailed     EventKind = "refund_failed"
	EventTransferOrphaned EventKind = "transfer_orphaned"
)

// Event is one entry of a contract's append-only history.
// Seq and ID are assigned by the store when the event is appended.
type Event struct {
	Seq        int64             `json:"seq"`
	ID         string            `json:"id"`
	ContractID string            `json:"contract_id"`
	Kind       EventKind         `json:"kind"`
	Caller     string            `json:"caller"`
	At         uint64            `json:"at"`
	Detail     map[string]string `json:"detail,omitempty"`
}

func saturatingAdd(a, b uint64) uint64 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint64(0)
}
