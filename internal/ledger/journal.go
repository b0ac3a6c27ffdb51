package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Journal durably records transfers and numbers them.
type Journal interface {
	// AppendTransfer stores req and returns its ordinal (starting at 1).
	// When req.Custody has already paid out it stores nothing and returns
	// a *ReleasedError describing the earlier release.
	AppendTransfer(ctx context.Context, req TransferRequest) (uint64, error)
}

// JournalGateway settles transfers into a local Journal. It stands in for
// a real ledger connection: the ledger fee is charged on top of the amount,
// and each lock's custody pays out once. Repeating that payout exactly is
// answered with Duplicate and the earlier ordinal, as ICRC-1 ledgers do.
type JournalGateway struct {
	journal  Journal
	registry *Registry
	logger   *slog.Logger
}

// NewJournalGateway creates a JournalGateway.
func NewJournalGateway(journal Journal, registry *Registry, logger *slog.Logger) *JournalGateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &JournalGateway{journal: journal, registry: registry, logger: logger}
}

var _ Gateway = (*JournalGateway)(nil)

func (g *JournalGateway) Transfer(ctx context.Context, req TransferRequest) (Receipt, error) {
	l, ok := g.registry.Lookup(req.LedgerID)
	if !ok {
		return Receipt{}, NewTransferError(ErrUnknownLedger, "ledger %q is not configured", req.LedgerID)
	}
	if req.Fee != nil && *req.Fee != l.Fee {
		return Receipt{}, NewTransferError(ErrBadFee, "expected fee %s, got %s",
			l.FormatAmount(l.Fee), l.FormatAmount(*req.Fee))
	}

	charged := req
	fee := l.Fee
	charged.Fee = &fee

	ordinal, err := g.journal.AppendTransfer(ctx, charged)
	if err != nil {
		var released *ReleasedError
		if !errors.As(err, &released) {
			return Receipt{}, &TransferError{Code: ErrLedgerUnavailable, Message: fmt.Sprintf("journal: %v", err)}
		}
		if released.Same(req) {
			g.logger.Info("duplicate transfer", "custody", req.Custody, "duplicate_of", released.Ordinal)
			prior := released.Ordinal
			return Receipt{}, &TransferError{
				Code:        ErrDuplicate,
				Message:     fmt.Sprintf("already settled at #%d", prior),
				DuplicateOf: &prior,
			}
		}
		return Receipt{}, NewTransferError(ErrInsufficientFunds, "custody %s already released to %s at #%d",
			req.Custody, released.To, released.Ordinal)
	}

	g.logger.Info("transfer settled",
		"ledger_id", req.LedgerID,
		"to", req.To,
		"custody", req.Custody,
		"amount", l.FormatAmount(req.Amount),
		"fee", l.FormatAmount(l.Fee),
		"ordinal", ordinal)
	return Receipt{LedgerID: req.LedgerID, Ordinal: ordinal}, nil
}
