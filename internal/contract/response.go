package contract

import "errors"

// Response is the uniform result of every mutating operation as it is
// presented to callers outside the engine.
type Response struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Code           Code      `json:"code,omitempty"`
	LockID         *string   `json:"lock_id,omitempty"`
	Contract       *Contract `json:"contract,omitempty"`
	TransferResult *uint64   `json:"transfer_result,omitempty"`
}

// Succeeded builds a success response. receipt is nil for operations that
// do not move custody through the gateway.
func Succeeded(message, lockID string, c *Contract, receipt *uint64) Response {
	id := lockID
	var snapshot *Contract
	if c != nil {
		cp := c.Clone()
		snapshot = &cp
	}
	return Response{
		Success:        true,
		Message:        message,
		LockID:         &id,
		Contract:       snapshot,
		TransferResult: receipt,
	}
}

// Failed builds a failure response from err. Errors that are not an *Error
// surface with an empty code and their raw message.
func Failed(err error) Response {
	r := Response{Success: false, Message: err.Error()}
	var ce *Error
	if errors.As(err, &ce) {
		r.Message = ce.Message
		r.Code = ce.Code
		if ce.LockID != "" {
			id := ce.LockID
			r.LockID = &id
		}
	}
	return r
}
