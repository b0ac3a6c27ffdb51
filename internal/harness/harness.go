package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/digest"
	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/store"
	"github.com/roach88/timelock/internal/testutil"
)

// DefaultLedgerID is used when a new_contract step names no ledger.
const DefaultLedgerID = "icp"

// stepTimeout bounds every step except a held one.
const stepTimeout = 5 * time.Second

type heldOp struct {
	step  Step
	index int
	done  chan opResult
}

type opResult struct {
	outcome *engine.Outcome
	err     error
}

// runner executes one scenario against a fresh engine.
type runner struct {
	store   *store.SQLiteStore
	engine  *engine.Engine
	gateway *ledger.MockGateway
	clock   *testutil.ManualClock

	names []string          // saved names in creation order
	ids   map[string]string // saved name -> lock id
	held  *heldOp
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database against the real engine,
// a MockGateway, a manual clock and in-flight tokens claim-1, claim-2, ...
// and refund-1, refund-2, ... in step order.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.DiscardHandler)
	clock := testutil.NewManualClock(0)
	gw := ledger.NewMockGateway(logger)

	r := &runner{
		store:   st,
		gateway: gw,
		clock:   clock,
		ids:     make(map[string]string),
		engine: engine.New(st, gw,
			engine.WithLogger(logger),
			engine.WithClock(clock),
			engine.WithClaimGrace(scenario.ClaimGraceNS),
			engine.WithMinTimelock(scenario.MinTimelockNS),
			engine.WithTokenGenerator(engine.NewFixedGenerator(inFlightTokens(scenario)...)),
		),
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := r.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	if err := r.collectEvents(ctx, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, IDs: r.ids, Now: clock.Now()}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError("%s", msg)
	}

	return result, nil
}

// inFlightTokens lists one token per claim and refund step. Every such step
// draws a token on entry, even when it is then rejected.
func inFlightTokens(s *Scenario) []string {
	var tokens []string
	seen := map[string]int{}
	for _, step := range s.Steps {
		if step.Op == OpClaim || step.Op == OpRefund {
			seen[step.Op]++
			tokens = append(tokens, fmt.Sprintf("%s-%d", step.Op, seen[step.Op]))
		}
	}
	return tokens
}

func (r *runner) execute(ctx context.Context, i int, step Step, result *Result) error {
	r.clock.Set(step.At)

	if step.Op == OpRelease {
		return r.release(i, step, result)
	}

	if step.Transfer == TransferHold {
		r.hold(i, step)
		return nil
	}

	stepCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	var (
		outcome *engine.Outcome
		err     error
	)
	switch step.Op {
	case OpNewContract:
		outcome, err = r.engine.Create(stepCtx, r.newContractRequest(step), step.As, step.At)
		if err == nil && step.Save != "" {
			if _, exists := r.ids[step.Save]; !exists {
				r.names = append(r.names, step.Save)
			}
			r.ids[step.Save] = outcome.LockID
		}
	case OpClaim, OpRefund:
		if step.Transfer == TransferFail {
			r.gateway.FailNext(ledger.NewTransferError(ledger.ErrLedgerUnavailable, "scripted failure"))
		}
		outcome, err = r.payout(stepCtx, step)
	}

	r.record(i, step, step.Expect, outcome, err, result)
	return nil
}

func (r *runner) payout(ctx context.Context, step Step) (*engine.Outcome, error) {
	id := r.lockID(step.Contract)
	if step.Op == OpRefund {
		return r.engine.Refund(ctx, contract.RefundRequest{LockID: id}, step.As, step.At)
	}
	return r.engine.Claim(ctx, contract.ClaimRequest{LockID: id, Preimage: step.Args.Preimage}, step.As, step.At)
}

// hold starts a claim or refund whose transfer stays suspended until
// release. It returns once the transfer is outstanding or the operation was
// rejected before reaching the gateway.
func (r *runner) hold(i int, step Step) {
	for len(r.gateway.Started()) > 0 {
		<-r.gateway.Started()
	}
	r.gateway.Hold()

	h := &heldOp{step: step, index: i, done: make(chan opResult, 1)}
	go func() {
		o, err := r.payout(context.Background(), step)
		h.done <- opResult{outcome: o, err: err}
	}()

	select {
	case <-r.gateway.Started():
	case res := <-h.done:
		// Rejected early: disarm so the next transfer is not parked.
		r.gateway.Release()
		h.done <- res
	}
	r.held = h
}

func (r *runner) release(i int, step Step, result *Result) error {
	h := r.held
	if h == nil {
		return fmt.Errorf("no held operation")
	}
	r.held = nil
	r.gateway.Release()

	res := <-h.done
	traced := h.step
	traced.At = step.At
	traced.Op = OpRelease
	r.record(i, traced, step.Expect, res.outcome, res.err, result)
	return nil
}

func (r *runner) record(i int, step Step, expect *Expect, outcome *engine.Outcome, err error, result *Result) {
	resp := engine.Respond(outcome, err)

	name := step.Save
	if step.Op != OpNewContract {
		name = step.Contract
	}
	tr := StepTrace{
		Index:    i,
		Op:       step.Op,
		As:       step.As,
		At:       step.At,
		Contract: name,
		Success:  resp.Success,
		Code:     string(resp.Code),
		Message:  resp.Message,
		Receipt:  resp.TransferResult,
	}
	result.Steps = append(result.Steps, tr)

	if expect == nil {
		return
	}
	if expect.Success != resp.Success {
		result.AddError("step %d (%s): expected success=%t, got success=%t (%s)", i, step.Op, expect.Success, resp.Success, resp.Message)
		return
	}
	if expect.Code != "" && expect.Code != string(resp.Code) {
		result.AddError("step %d (%s): expected code %s, got %q", i, step.Op, expect.Code, resp.Code)
	}
}

func (r *runner) newContractRequest(step Step) contract.NewContractRequest {
	hashlock := step.Args.Hashlock
	if hashlock == "" && step.Args.Secret != "" {
		hashlock = digest.HashString(step.Args.Secret)
	}
	ledgerID := step.Args.LedgerID
	if ledgerID == "" {
		ledgerID = DefaultLedgerID
	}
	return contract.NewContractRequest{
		Receiver: step.Args.Receiver,
		Amount:   step.Args.Amount,
		Hashlock: hashlock,
		Timelock: step.Args.Timelock,
		LedgerID: ledgerID,
	}
}

// lockID resolves a saved name. Unknown names pass through as raw ids.
func (r *runner) lockID(name string) string {
	if id, ok := r.ids[name]; ok {
		return id
	}
	return name
}

// collectEvents gathers the history of every saved contract in store order.
func (r *runner) collectEvents(ctx context.Context, result *Result) error {
	for _, name := range r.names {
		events, err := r.store.Events(ctx, r.ids[name])
		if err != nil {
			return fmt.Errorf("read events for %s: %w", name, err)
		}
		for _, ev := range events {
			result.Events = append(result.Events, EventTrace{
				Seq:      ev.Seq,
				Contract: name,
				Kind:     string(ev.Kind),
				Caller:   ev.Caller,
				At:       ev.At,
				Detail:   ev.Detail,
			})
		}
	}
	slices.SortFunc(result.Events, func(a, b EventTrace) int {
		return int(a.Seq - b.Seq)
	})
	return nil
}
