package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/ledger"
)

// Insert stores a new contract together with its creation event.
// A primary key conflict maps to ErrDuplicate.
func (s *SQLiteStore) Insert(ctx context.Context, id string, c contract.Contract, ev contract.Event) error {
	if err := checkRecord(c); err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert %s: begin tx: %w", id, err)
	}
	defer tx.Rollback() // No-op if committed

	var createdSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(created_seq), 0) + 1 FROM contracts`).Scan(&createdSeq); err != nil {
		return fmt.Errorf("insert %s: next seq: %w", id, err)
	}

	op, token, since := inFlightColumns(c.InFlight)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO contracts
		(id, created_seq, sender, receiver, amount, hashlock, timelock, ledger_id,
		 preimage, withdrawn, refunded, inflight_op, inflight_token, inflight_since)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		createdSeq,
		c.Sender,
		c.Receiver,
		padUint(c.Amount),
		c.Hashlock,
		padUint(c.Timelock),
		c.LedgerID,
		c.Preimage,
		boolToInt(c.Withdrawn),
		boolToInt(c.Refunded),
		op,
		token,
		since,
	)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert %s: %w", id, err)
	}

	if err := appendEvent(ctx, tx, id, ev); err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert %s: commit: %w", id, err)
	}
	return nil
}

// Update runs fn inside a single immediate transaction. The write lock is
// held from the read through the commit, so no other writer, in this
// process or another, can interleave.
func (s *SQLiteStore) Update(ctx context.Context, id string, fn Transition) (contract.Contract, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contract.Contract{}, fmt.Errorf("update %s: begin tx: %w", id, err)
	}
	defer tx.Rollback() // No-op if committed

	before, err := scanContract(tx.QueryRowContext(ctx, selectContract+` WHERE id = ?`, id))
	if err != nil {
		return contract.Contract{}, err
	}

	after := before.Clone()
	ev, err := fn(&after)
	if err != nil {
		return contract.Contract{}, err
	}
	if err := checkTransition(before, after); err != nil {
		return contract.Contract{}, fmt.Errorf("update %s: %w", id, err)
	}

	if !reflect.DeepEqual(before, after) {
		op, token, since := inFlightColumns(after.InFlight)
		_, err = tx.ExecContext(ctx, `
			UPDATE contracts
			SET preimage = ?, withdrawn = ?, refunded = ?,
			    inflight_op = ?, inflight_token = ?, inflight_since = ?
			WHERE id = ?
		`,
			after.Preimage,
			boolToInt(after.Withdrawn),
			boolToInt(after.Refunded),
			op,
			token,
			since,
			id,
		)
		if err != nil {
			return contract.Contract{}, fmt.Errorf("update %s: %w", id, err)
		}
	}

	if ev != nil {
		if err := appendEvent(ctx, tx, id, *ev); err != nil {
			return contract.Contract{}, fmt.Errorf("update %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return contract.Contract{}, fmt.Errorf("update %s: commit: %w", id, err)
	}
	return after, nil
}

// AppendTransfer records a settled transfer and returns its ordinal.
// It makes SQLiteStore usable as a ledger.Journal.
//
// A transfer out of a custody that has already paid out is not recorded;
// the returned *ledger.ReleasedError describes the earlier payout.
func (s *SQLiteStore) AppendTransfer(ctx context.Context, req ledger.TransferRequest) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append transfer: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var custody *string
	if req.Custody != "" {
		prior, err := scanTransfer(tx.QueryRowContext(ctx, selectTransfer+` WHERE custody = ?`, req.Custody))
		switch {
		case err == nil:
			return 0, &ledger.ReleasedError{
				Custody: req.Custody,
				Ordinal: prior.Ordinal,
				To:      prior.To,
				Amount:  prior.Amount,
				Memo:    prior.Memo,
			}
		case !errors.Is(err, sql.ErrNoRows):
			return 0, fmt.Errorf("append transfer: %w", err)
		}
		custody = &req.Custody
	}

	var fee uint64
	if req.Fee != nil {
		fee = *req.Fee
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO transfers (ledger_id, recipient, subaccount, amount, memo, custody, fee)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		req.LedgerID,
		req.To,
		req.Subaccount,
		padUint(req.Amount),
		req.Memo,
		custody,
		padUint(fee),
	)
	if err != nil {
		return 0, fmt.Errorf("append transfer: %w", err)
	}

	ordinal, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append transfer: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append transfer: commit: %w", err)
	}
	return uint64(ordinal), nil
}

var _ ledger.Journal = (*SQLiteStore)(nil)

// appendEvent assigns the next seq and the content-addressed id, then
// writes ev within tx.
func appendEvent(ctx context.Context, tx *sql.Tx, contractID string, ev contract.Event) error {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM contract_events`).Scan(&seq); err != nil {
		return fmt.Errorf("append event: next seq: %w", err)
	}

	sealed, err := sealEvent(ev, contractID, seq)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	detailJSON, err := marshalDetail(sealed.Detail)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contract_events
		(seq, id, contract_id, kind, caller, at, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		sealed.Seq,
		sealed.ID,
		sealed.ContractID,
		string(sealed.Kind),
		sealed.Caller,
		padUint(sealed.At),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func inFlightColumns(f *contract.InFlight) (op, token, since *string) {
	if f == nil {
		return nil, nil, nil
	}
	o := string(f.Op)
	t := f.Token
	s := padUint(f.Since)
	return &o, &t, &s
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}
