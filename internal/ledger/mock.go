package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MockGateway is an in-memory Gateway for tests and scenarios.
//
// Ordinals start at 1 and increase per successful transfer. Failures can be
// scripted with FailNext. Hold parks the next Transfer until Release is
// called or the caller's context ends, which opens the suspension window on
// demand. Custody is not tracked: every transfer settles.
type MockGateway struct {
	mu        sync.Mutex
	ordinal   uint64
	transfers []TransferRequest
	failures  []error
	armed     bool
	gate      chan struct{}
	started   chan TransferRequest
	logger    *slog.Logger
}

// NewMockGateway creates a MockGateway. A nil logger discards output.
func NewMockGateway(logger *slog.Logger) *MockGateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MockGateway{
		started: make(chan TransferRequest, 16),
		logger:  logger,
	}
}

var _ Gateway = (*MockGateway)(nil)

// Transfer records the request and returns the next ordinal, unless a
// scripted failure is queued.
func (m *MockGateway) Transfer(ctx context.Context, req TransferRequest) (Receipt, error) {
	m.mu.Lock()
	var held chan struct{}
	if m.armed {
		held = m.gate
		m.armed = false
	}
	m.mu.Unlock()

	select {
	case m.started <- req:
	default:
	}

	if held != nil {
		m.logger.Debug("transfer held", "ledger_id", req.LedgerID, "to", req.To, "amount", req.Amount)
		select {
		case <-held:
		case <-ctx.Done():
			return Receipt{}, fmt.Errorf("transfer interrupted: %w", ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		m.logger.Debug("transfer failed", "ledger_id", req.LedgerID, "error", err)
		return Receipt{}, err
	}

	m.ordinal++
	m.transfers = append(m.transfers, req)
	m.logger.Debug("transfer completed", "ledger_id", req.LedgerID, "to", req.To, "amount", req.Amount, "ordinal", m.ordinal)
	return Receipt{LedgerID: req.LedgerID, Ordinal: m.ordinal}, nil
}

// FailNext queues err as the result of the next transfer. A nil err queues
// a generic rejection.
func (m *MockGateway) FailNext(err error) {
	if err == nil {
		err = NewTransferError(ErrRejected, "scripted failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

// Hold makes the next transfer block until Release.
func (m *MockGateway) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate == nil {
		m.gate = make(chan struct{})
	}
	m.armed = true
}

// Release unblocks the held transfer, or disarms a hold nobody reached.
func (m *MockGateway) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
	m.armed = false
}

// Started delivers each request as it enters Transfer. Buffered; requests
// are dropped when nobody drains it.
func (m *MockGateway) Started() <-chan TransferRequest {
	return m.started
}

// Transfers returns the successful transfers in call order.
func (m *MockGateway) Transfers() []TransferRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TransferRequest, len(m.transfers))
	copy(out, m.transfers)
	return out
}
