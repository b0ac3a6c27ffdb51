// Package ledger is the port to the external token ledgers that hold
// escrowed funds, plus the adapters the engine runs against.
//
// A Transfer call is the only point where a claim suspends. Callers must
// assume any other operation can run while it is outstanding.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// TransferRequest moves Amount base units from engine custody to To.
type TransferRequest struct {
	LedgerID   string
	Amount     uint64
	To         string
	Subaccount []byte
	Memo       string

	// Custody names the escrow the transfer pays out of, the lock id.
	// An escrow pays out at most once.
	Custody string

	// Fee is the fee the caller expects to be charged on top of Amount.
	// Nil accepts the ledger's fee.
	Fee *uint64
}

// Receipt acknowledges a completed transfer. Ordinal is the ledger's
// block index or equivalent sequence number.
type Receipt struct {
	LedgerID string `json:"ledger_id"`
	Ordinal  uint64 `json:"ordinal"`
}

// Gateway performs transfers on external ledgers.
type Gateway interface {
	Transfer(ctx context.Context, req TransferRequest) (Receipt, error)
}

// TransferErrorCode classifies a failed transfer.
type TransferErrorCode string

const (
	ErrInsufficientFunds TransferErrorCode = "InsufficientFunds"
	ErrLedgerUnavailable TransferErrorCode = "LedgerUnavailable"
	ErrBadFee            TransferErrorCode = "BadFee"
	ErrUnknownLedger     TransferErrorCode = "UnknownLedger"
	ErrRejected          TransferErrorCode = "Rejected"
	ErrDuplicate         TransferErrorCode = "Duplicate"
)

// TransferError is a transfer rejected by the ledger or the gateway.
type TransferError struct {
	Code    TransferErrorCode
	Message string

	// DuplicateOf is the ordinal of the earlier identical transfer when
	// Code is ErrDuplicate.
	DuplicateOf *uint64
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %s", e.Code, e.Message)
}

// NewTransferError creates a TransferError.
func NewTransferError(code TransferErrorCode, format string, args ...any) *TransferError {
	return &TransferError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AlreadySettled reports whether err says the transfer had already been
// executed, and if so returns the receipt of that earlier transfer.
func AlreadySettled(ledgerID string, err error) (Receipt, bool) {
	var te *TransferError
	if !errors.As(err, &te) || te.Code != ErrDuplicate || te.DuplicateOf == nil {
		return Receipt{}, false
	}
	return Receipt{LedgerID: ledgerID, Ordinal: *te.DuplicateOf}, true
}

// ReleasedError is returned by a Journal when the custody a transfer pays
// out of has already been released.
type ReleasedError struct {
	Custody string
	Ordinal uint64
	To      string
	Amount  uint64
	Memo    string
}

func (e *ReleasedError) Error() string {
	return fmt.Sprintf("custody %s already released at #%d", e.Custody, e.Ordinal)
}

// Same reports whether req repeats the release e describes.
func (e *ReleasedError) Same(req TransferRequest) bool {
	return e.To == req.To && e.Amount == req.Amount && e.Memo == req.Memo
}
