package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/store"
)

// status is the one-word state of c at now.
func status(c contract.Contract, now uint64) string {
	switch {
	case c.Withdrawn:
		return "withdrawn"
	case c.Refunded:
		return "refunded"
	case c.Expired(now):
		return "expired"
	default:
		return "active"
	}
}

// formatTime renders ns since the epoch as UTC RFC 3339.
func formatTime(ns uint64) string {
	if ns > uint64(1<<63-1) {
		return "never"
	}
	return time.Unix(0, int64(ns)).UTC().Format(time.RFC3339Nano)
}

// formatAmount renders base units with the ledger's symbol when known.
func formatAmount(reg *ledger.Registry, ledgerID string, amount uint64) string {
	if l, ok := reg.Lookup(ledgerID); ok {
		return fmt.Sprintf("%s %s (%d)", l.FormatAmount(amount), l.Symbol, amount)
	}
	return fmt.Sprintf("%d", amount)
}

// writeContract prints a contract in text mode.
func writeContract(w io.Writer, reg *ledger.Registry, id string, c contract.Contract, now uint64) {
	fmt.Fprintf(w, "  lock_id:   %s\n", id)
	fmt.Fprintf(w, "  sender:    %s\n", c.Sender)
	fmt.Fprintf(w, "  receiver:  %s\n", c.Receiver)
	fmt.Fprintf(w, "  amount:    %s\n", formatAmount(reg, c.LedgerID, c.Amount))
	fmt.Fprintf(w, "  ledger:    %s\n", c.LedgerID)
	fmt.Fprintf(w, "  hashlock:  %s\n", c.Hashlock)
	fmt.Fprintf(w, "  timelock:  %d (%s)\n", c.Timelock, formatTime(c.Timelock))
	fmt.Fprintf(w, "  status:    %s\n", status(c, now))
	if c.Preimage != nil {
		fmt.Fprintf(w, "  preimage:  %s\n", *c.Preimage)
	}
	if c.InFlight != nil {
		fmt.Fprintf(w, "  in_flight: %s since %d (token %s)\n", c.InFlight.Op, c.InFlight.Since, c.InFlight.Token)
	}
}

// writeCustody prints where a contract's funds are: still locked, or the
// journal transfer that released them.
func writeCustody(w io.Writer, reg *ledger.Registry, rec store.TransferRecord, released bool) {
	if !released {
		fmt.Fprintln(w, "  custody:   locked")
		return
	}
	fmt.Fprintf(w, "  custody:   released to %s (%s #%d, fee %s)\n",
		rec.To, rec.LedgerID, rec.Ordinal, formatAmount(reg, rec.LedgerID, rec.Fee))
}
