package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/timelock/internal/contract"
)

const selectContract = `
	SELECT id, sender, receiver, amount, hashlock, timelock, ledger_id,
	       preimage, withdrawn, refunded, inflight_op, inflight_token, inflight_since
	FROM contracts`

const selectTransfer = `
	SELECT ordinal, ledger_id, recipient, custody, amount, fee, memo
	FROM transfers`

// Get returns the contract stored under id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (contract.Contract, error) {
	return scanContract(s.db.QueryRowContext(ctx, selectContract+` WHERE id = ?`, id))
}

// List returns matching contracts ordered by insertion, then id.
// Returns an empty slice (not nil) if nothing matches.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]contract.Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Sender != "" {
		where = append(where, "sender = ?")
		args = append(args, f.Sender)
	}
	if f.Receiver != "" {
		where = append(where, "receiver = ?")
		args = append(args, f.Receiver)
	}
	switch f.Status {
	case StatusActive:
		where = append(where, "withdrawn = 0 AND refunded = 0")
	case StatusExpired:
		where = append(where, "withdrawn = 0 AND refunded = 0 AND timelock <= ?")
		args = append(args, padUint(f.Now))
	case StatusWithdrawn:
		where = append(where, "withdrawn = 1")
	case StatusRefunded:
		where = append(where, "refunded = 1")
	}

	query := selectContract
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_seq ASC, id COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	entries := []contract.Entry{}
	for rows.Next() {
		var e contract.Entry
		e.Contract, e.ID, err = scanContractWithID(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored contracts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contracts: %w", err)
	}
	return n, nil
}

// Events returns the history of one contract ordered by seq.
func (s *SQLiteStore) Events(ctx context.Context, id string) ([]contract.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, contract_id, kind, caller, at, detail
		FROM contract_events
		WHERE contract_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []contract.Event{}
	for rows.Next() {
		var (
			ev     contract.Event
			kind   string
			at     string
			detail string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.ContractID, &kind, &ev.Caller, &at, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = contract.EventKind(kind)
		if ev.At, err = parseUint("at", at); err != nil {
			return nil, err
		}
		if ev.Detail, err = unmarshalDetail(detail); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// TransferRecord is one row of the transfer journal.
type TransferRecord struct {
	Ordinal  uint64
	LedgerID string
	To       string
	Custody  string
	Amount   uint64
	Fee      uint64
	Memo     string
}

// Transfers returns the transfer journal in ordinal order.
func (s *SQLiteStore) Transfers(ctx context.Context) ([]TransferRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectTransfer+` ORDER BY ordinal ASC`)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	records := []TransferRecord{}
	for rows.Next() {
		r, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return records, nil
}

// Release returns the payout out of a lock's custody. ok is false while
// the custody is still locked.
func (s *SQLiteStore) Release(ctx context.Context, lockID string) (r TransferRecord, ok bool, err error) {
	r, err = scanTransfer(s.db.QueryRowContext(ctx, selectTransfer+` WHERE custody = ?`, lockID))
	if errors.Is(err, sql.ErrNoRows) {
		return TransferRecord{}, false, nil
	}
	if err != nil {
		return TransferRecord{}, false, err
	}
	return r, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTransfer reads one row of selectTransfer. sql.ErrNoRows is returned
// unwrapped.
func scanTransfer(row rowScanner) (TransferRecord, error) {
	var (
		r       TransferRecord
		custody sql.NullString
		amount  string
		fee     string
	)
	if err := row.Scan(&r.Ordinal, &r.LedgerID, &r.To, &custody, &amount, &fee, &r.Memo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TransferRecord{}, err
		}
		return TransferRecord{}, fmt.Errorf("scan transfer: %w", err)
	}
	r.Custody = custody.String

	var err error
	if r.Amount, err = parseUint("amount", amount); err != nil {
		return TransferRecord{}, err
	}
	if r.Fee, err = parseUint("fee", fee); err != nil {
		return TransferRecord{}, err
	}
	return r, nil
}

// scanContract reads one row of selectContract. sql.ErrNoRows maps to
// ErrNotFound.
func scanContract(row rowScanner) (contract.Contract, error) {
	c, _, err := scanContractWithID(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contract.Contract{}, ErrNotFound
	}
	return c, err
}

func scanContractWithID(row rowScanner) (contract.Contract, string, error) {
	var (
		c         contract.Contract
		id        string
		amount    string
		timelock  string
		preimage  sql.NullString
		withdrawn int
		refunded  int
		op        sql.NullString
		token     sql.NullString
		since     sql.NullString
	)

	err := row.Scan(&id, &c.Sender, &c.Receiver, &amount, &c.Hashlock, &timelock, &c.LedgerID,
		&preimage, &withdrawn, &refunded, &op, &token, &since)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contract.Contract{}, "", err
		}
		return contract.Contract{}, "", fmt.Errorf("scan contract: %w", err)
	}

	if c.Amount, err = parseUint("amount", amount); err != nil {
		return contract.Contract{}, "", err
	}
	if c.Timelock, err = parseUint("timelock", timelock); err != nil {
		return contract.Contract{}, "", err
	}
	if preimage.Valid {
		p := preimage.String
		c.Preimage = &p
	}
	c.Withdrawn = withdrawn == 1
	c.Refunded = refunded == 1

	if token.Valid {
		at, err := parseUint("inflight_since", since.String)
		if err != nil {
			return contract.Contract{}, "", err
		}
		c.InFlight = &contract.InFlight{Op: contract.Op(op.String), Token: token.String, Since: at}
	}

	return c, id, nil
}
