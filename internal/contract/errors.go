package contract

import (
	"errors"
	"fmt"
)

// Code identifies a specific failure of a lifecycle operation.
type Code string

const (
	// ValidationError codes
	CodeEmptyField      Code = "EmptyField"
	CodeInvalidAmount   Code = "InvalidAmount"
	CodeInvalidHashlock Code = "InvalidHashlock"
	CodeInvalidPreimage Code = "InvalidPreimage"

	// TemporalError codes
	CodeTimelockInPast     Code = "TimelockInPast"
	CodeTimelockExpired    Code = "TimelockExpired"
	CodeTimelockNotExpired Code = "TimelockNotExpired"
	CodeInvalidTimelock    Code = "InvalidTimelock"

	// AuthorizationError codes
	CodeUnauthorized Code = "Unauthorized"

	// StateError codes
	CodeNotFound          Code = "NotFound"
	CodeDuplicateContract Code = "DuplicateContract"
	CodeAlreadyWithdrawn  Code = "AlreadyWithdrawn"
	CodeAlreadyRefunded   Code = "AlreadyRefunded"
	CodeClaimInProgress   Code = "ClaimInProgress"
	CodeRefundInProgress  Code = "RefundInProgress"

	// TransferError codes
	CodeTransferFailed Code = "TransferFailed"

	// ConcurrencyError codes
	CodeConcurrentFinalization Code = "ConcurrentFinalization"
)

// Kind groups codes into the error categories surfaced to callers.
type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindAuthorization Kind = "AuthorizationError"
	KindState         Kind = "StateError"
	KindTemporal      Kind = "TemporalError"
	KindTransfer      Kind = "TransferError"
	KindConcurrency   Kind = "ConcurrencyError"
)

// Kind returns the category of the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeEmptyField, CodeInvalidAmount, CodeInvalidHashlock, CodeInvalidPreimage:
		return KindValidation
	case CodeTimelockInPast, CodeTimelockExpired, CodeTimelockNotExpired, CodeInvalidTimelock:
		return KindTemporal
	case CodeUnauthorized:
		return KindAuthorization
	case CodeTransferFailed:
		return KindTransfer
	case CodeConcurrentFinalization:
		return KindConcurrency
	default:
		return KindState
	}
}

// Error is the structured failure returned by validation and by the
// lifecycle orchestrator. None of these conditions abort the process.
type Error struct {
	// Code identifies the failure.
	Code Code

	// Message is a human-readable description.
	Message string

	// LockID identifies the affected contract, when known.
	LockID string

	// Err is the underlying cause (e.g. a gateway error).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.LockID != "" {
		msg = fmt.Sprintf("%s (lock=%s)", msg, e.LockID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error carrying an underlying cause.
func WrapError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithLock returns a copy of e bound to lockID.
func (e *Error) WithLock(lockID string) *Error {
	out := *e
	out.LockID = lockID
	return &out
}

// CodeOf extracts the code from err. Returns "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Messages used across the engine. They follow the wording operators see
// in logs and CLI output, so keep them stable.
const (
	MsgReceiverEmpty       = "Receiver cannot be empty"
	MsgAmountZero          = "Amount must be greater than 0"
	MsgHashlockEmpty       = "Hashlock cannot be empty"
	MsgHashlockInvalid     = "Hashlock must be a valid SHA-256 hash (64 characters)"
	MsgTimelockInPast      = "Timelock must be in the future"
	MsgTimelockTooShort    = "Timelock is shorter than the minimum lock duration"
	MsgTimelockExpired     = "Timelock has expired"
	MsgTimelockNotExpired  = "Timelock has not expired yet"
	MsgOnlyReceiver        = "Only receiver can claim"
	MsgOnlySender          = "Only sender can refund"
	MsgInvalidPreimage     = "Invalid preimage"
	MsgAlreadyWithdrawn    = "Already withdrawn"
	MsgAlreadyRefunded     = "Already refunded"
	MsgNotFound            = "Contract not found"
	MsgDuplicate           = "Contract already exists"
	MsgClaimInProgress     = "Claim already in progress"
	MsgRefundInProgress    = "Refund already in progress"
	MsgTransferFailed      = "Transfer failed"
	MsgConcurrentFinalized = "Contract was finalized during the transfer; transfer orphaned"
)
