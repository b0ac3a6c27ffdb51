package ledger

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
)

// Ledger describes a token ledger contracts can be denominated in.
type Ledger struct {
	ID       string
	Symbol   string
	Decimals uint8
	Fee      uint64
}

// FormatAmount renders base units as a human decimal, e.g. 150000000 with
// 8 decimals is "1.5".
func (l Ledger) FormatAmount(amount uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(l.Decimals)).String()
}

// ParseAmount converts a human decimal to base units. It rejects negative
// values, more fractional digits than the ledger supports, and values that
// overflow uint64.
func (l Ledger) ParseAmount(text string) (uint64, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", text, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse amount %q: negative", text)
	}

	base := d.Shift(int32(l.Decimals))
	if !base.IsInteger() {
		return 0, fmt.Errorf("parse amount %q: more than %d decimal places for %s", text, l.Decimals, l.Symbol)
	}

	n := base.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("parse amount %q: out of range", text)
	}
	return n.Uint64(), nil
}

// Registry is the set of configured ledgers. The zero value is empty and
// accepts no ledger.
type Registry struct {
	ledgers map[string]Ledger
}

// NewRegistry builds a Registry from ledgers. Duplicate ids are an error.
func NewRegistry(ledgers ...Ledger) (*Registry, error) {
	r := &Registry{ledgers: make(map[string]Ledger, len(ledgers))}
	for _, l := range ledgers {
		if l.ID == "" {
			return nil, fmt.Errorf("ledger with empty id")
		}
		if _, dup := r.ledgers[l.ID]; dup {
			return nil, fmt.Errorf("duplicate ledger %q", l.ID)
		}
		r.ledgers[l.ID] = l
	}
	return r, nil
}

// Lookup returns the ledger with the given id.
func (r *Registry) Lookup(id string) (Ledger, bool) {
	if r == nil {
		return Ledger{}, false
	}
	l, ok := r.ledgers[id]
	return l, ok
}

// IDs returns the configured ledger ids in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.ledgers))
	for id := range r.ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
