package contract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(CodeNotFound, MsgNotFound).WithLock("abc")
	assert.Equal(t, "NotFound: Contract not found (lock=abc)", err.Error())

	cause := errors.New("ledger down")
	wrapped := WrapError(CodeTransferFailed, MsgTransferFailed, cause)
	assert.Equal(t, "TransferFailed: Transfer failed: ledger down", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError(CodeClaimInProgress, MsgClaimInProgress))

	assert.Equal(t, CodeClaimInProgress, CodeOf(err))
	assert.True(t, IsCode(err, CodeClaimInProgress))
	assert.False(t, IsCode(nil, CodeClaimInProgress))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestCodeKinds(t *testing.T) {
	assert.Equal(t, KindValidation, CodeInvalidPreimage.Kind())
	assert.Equal(t, KindTemporal, CodeTimelockNotExpired.Kind())
	assert.Equal(t, KindAuthorization, CodeUnauthorized.Kind())
	assert.Equal(t, KindState, CodeDuplicateContract.Kind())
	assert.Equal(t, KindState, CodeClaimInProgress.Kind())
	assert.Equal(t, KindState, CodeRefundInProgress.Kind())
	assert.Equal(t, KindTemporal, CodeInvalidTimelock.Kind())
	assert.Equal(t, KindTransfer, CodeTransferFailed.Kind())
	assert.Equal(t, KindConcurrency, CodeConcurrentFinalization.Kind())
}

func TestWithLockDoesNotMutate(t *testing.T) {
	base := NewError(CodeNotFound, MsgNotFound)
	_ = base.WithLock("abc")
	assert.Empty(t, base.LockID)
}

func TestResponses(t *testing.T) {
	c := openContract()
	receipt := uint64(7)

	ok := Succeeded("Claim successful", "id1", &c, &receipt)
	assert.True(t, ok.Success)
	assert.Equal(t, "id1", *ok.LockID)
	assert.Equal(t, uint64(7), *ok.TransferResult)
	ok.Contract.Amount = 1
	assert.Equal(t, uint64(100), c.Amount, "response must hold a snapshot")

	fail := Failed(NewError(CodeAlreadyWithdrawn, MsgAlreadyWithdrawn).WithLock("id1"))
	assert.False(t, fail.Success)
	assert.Equal(t, CodeAlreadyWithdrawn, fail.Code)
	assert.Equal(t, MsgAlreadyWithdrawn, fail.Message)
	assert.Equal(t, "id1", *fail.LockID)

	raw := Failed(errors.New("boom"))
	assert.Equal(t, "boom", raw.Message)
	assert.Empty(t, raw.Code)
	assert.Nil(t, raw.LockID)
}
