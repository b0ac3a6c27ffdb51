package contract

import "github.com/roach88/timelock/internal/digest"

// ValidateCreate checks a creation request against the clock reading now.
// minDuration is the shortest lock accepted, measured from now; zero only
// requires the timelock to lie in the future.
func ValidateCreate(req NewContractRequest, now, minDuration uint64) error {
	if req.Receiver == "" {
		return NewError(CodeEmptyField, MsgReceiverEmpty)
	}

	if req.Amount == 0 {
		return NewError(CodeInvalidAmount, MsgAmountZero)
	}

	if req.Hashlock == "" {
		return NewError(CodeInvalidHashlock, MsgHashlockEmpty)
	}

	if !digest.ValidHashlock(req.Hashlock) {
		return NewError(CodeInvalidHashlock, MsgHashlockInvalid)
	}

	if req.Timelock <= now {
		return NewError(CodeTimelockInPast, MsgTimelockInPast)
	}

	if req.Timelock-now < minDuration {
		return NewError(CodeInvalidTimelock, MsgTimelockTooShort)
	}

	return nil
}

// ValidateClaim checks a claim against the current record.
//
// Check order is a fixed contract: expiry, authorization, preimage, then
// terminal state. Callers depend on which error surfaces first when several
// apply. The in-flight check comes last.
func ValidateClaim(req ClaimRequest, c Contract, caller string, now uint64) error {
	if c.Expired(now) {
		return NewError(CodeTimelockExpired, MsgTimelockExpired)
	}

	if caller != c.Receiver {
		return NewError(CodeUnauthorized, MsgOnlyReceiver)
	}

	if !digest.VerifyPreimage(req.Preimage, c.Hashlock) {
		return NewError(CodeInvalidPreimage, MsgInvalidPreimage)
	}

	if c.Withdrawn {
		return NewError(CodeAlreadyWithdrawn, MsgAlreadyWithdrawn)
	}

	if c.Refunded {
		return NewError(CodeAlreadyRefunded, MsgAlreadyRefunded)
	}

	// Claims only happen before expiry, where every marker is live.
	if c.InFlight != nil {
		return inProgress(c.InFlight)
	}

	return nil
}

// ValidateRefund checks a refund against the current record.
// grace extends how long an in-flight marker blocks the refund; zero bounds
// a claim marker by the timelock and lets a refund take over its own stale
// marker at once.
func ValidateRefund(c Contract, caller string, now, grace uint64) error {
	if !c.Expired(now) {
		return NewError(CodeTimelockNotExpired, MsgTimelockNotExpired)
	}

	if caller != c.Sender {
		return NewError(CodeUnauthorized, MsgOnlySender)
	}

	if c.Withdrawn {
		return NewError(CodeAlreadyWithdrawn, MsgAlreadyWithdrawn)
	}

	if c.Refunded {
		return NewError(CodeAlreadyRefunded, MsgAlreadyRefunded)
	}

	if c.InFlightLive(now, grace) {
		return inProgress(c.InFlight)
	}

	return nil
}

func inProgress(f *InFlight) *Error {
	if f.Op == OpRefund {
		return NewError(CodeRefundInProgress, MsgRefundInProgress)
	}
	return NewError(CodeClaimInProgress, MsgClaimInProgress)
}
