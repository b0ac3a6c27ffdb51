package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/digest"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/store"
)

// Success messages returned in Outcome.Message.
const (
	MsgCreated  = "Contract created successfully"
	MsgClaimed  = "Claim successful"
	MsgRefunded = "Refund successful"
)

// Engine orchestrates contract lifecycle operations over a store and a
// ledger gateway.
//
// Thread-safety: all methods are safe for concurrent use. Atomicity comes
// from store.Update, not from the engine.
type Engine struct {
	store       store.Store
	gateway     ledger.Gateway
	clock       Clock
	tokens      TokenGenerator
	claimGrace  uint64
	minTimelock uint64
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClaimGrace lets an in-flight claim keep blocking refunds for ns
// nanoseconds past the timelock, and an in-flight refund block other
// refunds for ns nanoseconds after it started. Default: 0.
func WithClaimGrace(ns uint64) Option {
	return func(e *Engine) {
		e.claimGrace = ns
	}
}

// WithMinTimelock rejects contracts whose timelock is less than ns
// nanoseconds after creation. Default: 0.
func WithMinTimelock(ns uint64) Option {
	return func(e *Engine) {
		e.minTimelock = ns
	}
}

// WithTokenGenerator sets the in-flight token source. Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithClock sets the clock read when a payout resumes. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine.
func New(st store.Store, gw ledger.Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		gateway: gw,
		clock:   NewSystemClock(),
		tokens:  UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the result of a successful lifecycle operation.
type Outcome struct {
	LockID   string
	Contract contract.Contract
	Receipt  *ledger.Receipt
	Message  string
}

// Response converts the outcome to the caller-facing shape.
func (o *Outcome) Response() contract.Response {
	var ordinal *uint64
	if o.Receipt != nil {
		n := o.Receipt.Ordinal
		ordinal = &n
	}
	return contract.Succeeded(o.Message, o.LockID, &o.Contract, ordinal)
}

// Respond folds an operation's return values into a Response.
func Respond(o *Outcome, err error) contract.Response {
	if err != nil {
		return contract.Failed(err)
	}
	return o.Response()
}

// Create registers a new contract with the caller as sender.
func (e *Engine) Create(ctx context.Context, req contract.NewContractRequest, caller string, now uint64) (*Outcome, error) {
	if err := contract.ValidateCreate(req, now, e.minTimelock); err != nil {
		return nil, e.reject("create", "", caller, err)
	}

	hashlock := digest.NormalizeHashlock(req.Hashlock)
	id := digest.CommitmentID(caller, req.Receiver, req.Amount, hashlock, req.Timelock)

	c := contract.Contract{
		Sender:   caller,
		Receiver: req.Receiver,
		Amount:   req.Amount,
		Hashlock: hashlock,
		Timelock: req.Timelock,
		LedgerID: req.LedgerID,
	}
	ev := contract.Event{
		Kind:   contract.EventCreated,
		Caller: caller,
		At:     now,
		Detail: map[string]string{"ledger_id": req.LedgerID},
	}

	if err := e.store.Insert(ctx, id, c, ev); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, e.reject("create", id, caller, contract.NewError(contract.CodeDuplicateContract, contract.MsgDuplicate))
		}
		return nil, e.reject("create", id, caller, err)
	}

	e.logger.Info("contract created",
		"lock_id", id,
		"caller", caller,
		"receiver", req.Receiver,
		"amount", req.Amount,
		"ledger_id", req.LedgerID,
		"timelock", req.Timelock)

	return &Outcome{LockID: id, Contract: c, Message: MsgCreated}, nil
}

// Claim releases the funds to the receiver in exchange for the preimage.
//
// The transfer runs between two atomic steps. If the record was finalized
// by someone else while the transfer was outstanding, the result is not
// applied: the transfer is recorded as orphaned and ConcurrentFinalization
// is returned.
func (e *Engine) Claim(ctx context.Context, req contract.ClaimRequest, caller string, now uint64) (*Outcome, error) {
	final, receipt, err := e.pay(ctx, contract.OpClaim, req.LockID, caller, now, payout{
		validate: func(c contract.Contract) error {
			return contract.ValidateClaim(req, c, caller, now)
		},
		payee: func(c contract.Contract) string { return c.Receiver },
		settle: func(c *contract.Contract) {
			preimage := req.Preimage
			c.Preimage = &preimage
			c.Withdrawn = true
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("contract claimed",
		"lock_id", req.LockID,
		"caller", caller,
		"ledger_id", receipt.LedgerID,
		"ordinal", receipt.Ordinal)

	return &Outcome{LockID: req.LockID, Contract: final, Receipt: &receipt, Message: MsgClaimed}, nil
}

// Refund returns an expired, unclaimed contract to its sender. It follows
// the same two-step discipline as Claim; a stale claim marker is taken over
// on the way in.
func (e *Engine) Refund(ctx context.Context, req contract.RefundRequest, caller string, now uint64) (*Outcome, error) {
	final, receipt, err := e.pay(ctx, contract.OpRefund, req.LockID, caller, now, payout{
		validate: func(c contract.Contract) error {
			return contract.ValidateRefund(c, caller, now, e.claimGrace)
		},
		payee: func(c contract.Contract) string { return c.Sender },
		settle: func(c *contract.Contract) {
			c.Refunded = true
		},
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("contract refunded",
		"lock_id", req.LockID,
		"caller", caller,
		"amount", final.Amount,
		"ledger_id", receipt.LedgerID,
		"ordinal", receipt.Ordinal)

	return &Outcome{LockID: req.LockID, Contract: final, Receipt: &receipt, Message: MsgRefunded}, nil
}

// payout parameterizes the transfer half of Claim and Refund.
type payout struct {
	validate func(c contract.Contract) error
	payee    func(c contract.Contract) string
	settle   func(c *contract.Contract)
}

type phaseEvents struct {
	started, done, failed contract.EventKind
}

var phases = map[contract.Op]phaseEvents{
	contract.OpClaim:  {contract.EventClaimStarted, contract.EventClaimed, contract.EventClaimFailed},
	contract.OpRefund: {contract.EventRefundStarted, contract.EventRefunded, contract.EventRefundFailed},
}

// pay marks the contract in flight, moves its funds out of custody and
// settles the record. The returned error is already normalized by reject.
//
// On resume a failed transfer clears the marker only if this call still
// owns it. A successful transfer is applied unless the record went terminal
// meanwhile, in which case it is recorded as orphaned.
func (e *Engine) pay(ctx context.Context, op contract.Op, id, caller string, now uint64, p payout) (contract.Contract, ledger.Receipt, error) {
	name := string(op)
	ev := phases[op]
	token := e.tokens.Generate()

	held, err := e.store.Update(ctx, id, func(c *contract.Contract) (*contract.Event, error) {
		if err := p.validate(*c); err != nil {
			return nil, err
		}
		detail := map[string]string{"token": token}
		if c.InFlight != nil {
			detail["stale_token"] = c.InFlight.Token
		}
		c.InFlight = &contract.InFlight{Op: op, Token: token, Since: now}
		return &contract.Event{Kind: ev.started, Caller: caller, At: now, Detail: detail}, nil
	})
	if err != nil {
		return contract.Contract{}, ledger.Receipt{}, e.reject(name, id, caller, err)
	}

	e.logger.Debug(name+" started", "lock_id", id, "caller", caller, "token", token)

	receipt, transferErr := e.gateway.Transfer(ctx, ledger.TransferRequest{
		LedgerID: held.LedgerID,
		Amount:   held.Amount,
		To:       p.payee(held),
		Custody:  id,
		Memo:     name + " " + id,
	})
	if r, ok := ledger.AlreadySettled(held.LedgerID, transferErr); ok {
		e.logger.Warn("transfer already settled", "lock_id", id, "token", token, "ordinal", r.Ordinal)
		receipt, transferErr = r, nil
	}

	// Resumption runs even if the caller gave up: the marker must not be
	// left behind because the request context ended.
	resumeCtx := context.WithoutCancel(ctx)
	at := max(now, e.clock.Now())

	var outcome error
	final, err := e.store.Update(resumeCtx, id, func(c *contract.Contract) (*contract.Event, error) {
		owned := c.InFlight != nil && c.InFlight.Token == token

		switch {
		case transferErr != nil:
			outcome = contract.WrapError(contract.CodeTransferFailed, contract.MsgTransferFailed, transferErr)
			detail := map[string]string{"token": token, "error": transferErr.Error()}
			if owned {
				c.InFlight = nil
			}
			return &contract.Event{Kind: ev.failed, Caller: caller, At: at, Detail: detail}, nil

		case c.Terminal():
			outcome = contract.NewError(contract.CodeConcurrentFinalization, contract.MsgConcurrentFinalized)
			detail := receiptDetail(token, receipt)
			detail["op"] = name
			return &contract.Event{Kind: contract.EventTransferOrphaned, Caller: caller, At: at, Detail: detail}, nil
		}

		c.InFlight = nil
		p.settle(c)
		return &contract.Event{Kind: ev.done, Caller: caller, At: at, Detail: receiptDetail(token, receipt)}, nil
	})
	if err != nil {
		e.logger.Error(name+" resumption failed",
			"lock_id", id,
			"caller", caller,
			"token", token,
			"transfer_error", transferErr,
			"error", err)
		return contract.Contract{}, ledger.Receipt{}, fmt.Errorf("%s %s: resume: %w", name, id, err)
	}

	if outcome != nil {
		if contract.IsCode(outcome, contract.CodeConcurrentFinalization) {
			e.logger.Error("transfer orphaned",
				"lock_id", id,
				"caller", caller,
				"op", name,
				"ledger_id", receipt.LedgerID,
				"ordinal", receipt.Ordinal)
		}
		return contract.Contract{}, ledger.Receipt{}, e.reject(name, id, caller, outcome)
	}
	return final, receipt, nil
}

// reject normalizes err for callers and logs it. Domain failures become a
// *contract.Error bound to lockID; anything else is an infrastructure fault
// and is wrapped.
func (e *Engine) reject(op, lockID, caller string, err error) error {
	var ce *contract.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		ce = contract.NewError(contract.CodeNotFound, contract.MsgNotFound)
	case errors.As(err, &ce):
	default:
		e.logger.Error(op+" failed", "lock_id", lockID, "caller", caller, "error", err)
		if lockID == "" {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s %s: %w", op, lockID, err)
	}

	if lockID != "" {
		ce = ce.WithLock(lockID)
	}
	e.logger.Info(op+" rejected", "lock_id", lockID, "caller", caller, "code", ce.Code)
	return ce
}

func receiptDetail(token string, r ledger.Receipt) map[string]string {
	return map[string]string{
		"token":     token,
		"ledger_id": r.LedgerID,
		"ordinal":   strconv.FormatUint(r.Ordinal, 10),
	}
}
