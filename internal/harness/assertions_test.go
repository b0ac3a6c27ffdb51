package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/digest"
	"github.com/roach88/timelock/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func testEvents() []EventTrace {
	return []EventTrace{
		{Seq: 1, Contract: "a", Kind: "created", Caller: "alice", At: 1},
		{Seq: 2, Contract: "b", Kind: "created", Caller: "alice", At: 2},
		{Seq: 3, Contract: "a", Kind: "refunded", Caller: "alice", At: 9},
	}
}

func testContext(t *testing.T) *AssertionContext {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	c := contract.Contract{
		Sender:   "alice",
		Receiver: "bob",
		Amount:   5,
		Hashlock: digest.HashString("s"),
		Timelock: 100,
		LedgerID: "icp",
	}
	require.NoError(t, st.Insert(ctx, "id-a", c, contract.Event{Kind: contract.EventCreated, Caller: "alice", At: 1}))
	_, err := st.Update(ctx, "id-a", func(c *contract.Contract) (*contract.Event, error) {
		c.Refunded = true
		return nil, nil
	})
	require.NoError(t, err)

	c.Amount = 6
	require.NoError(t, st.Insert(ctx, "id-b", c, contract.Event{Kind: contract.EventCreated, Caller: "alice", At: 2}))

	return &AssertionContext{Ctx: ctx, Store: st, IDs: map[string]string{"a": "id-a", "b": "id-b"}, Now: 50}
}

func TestAssertEventOrder(t *testing.T) {
	assert.NoError(t, assertEventOrder(testEvents(), Assertion{Contract: "a", Events: []string{"created", "refunded"}}))
	assert.NoError(t, assertEventOrder(testEvents(), Assertion{Contract: "b", Events: []string{"created"}}))

	err := assertEventOrder(testEvents(), Assertion{Contract: "a", Events: []string{"created"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertEventOrder, ae.Type)
	assert.Equal(t, "[created refunded]", ae.Actual)
}

func TestAssertContractState(t *testing.T) {
	actx := testContext(t)

	pass := Assertion{Contract: "a", State: &StateExpect{Refunded: boolPtr(true), Withdrawn: boolPtr(false), InFlight: boolPtr(false)}}
	assert.NoError(t, assertContractState(actx, nil, pass))

	none := "<none>"
	assert.NoError(t, assertContractState(actx, nil, Assertion{Contract: "b", State: &StateExpect{Preimage: &none}}))

	amount := uint64(99)
	err := assertContractState(actx, nil, Assertion{Contract: "b", State: &StateExpect{Amount: &amount, Refunded: boolPtr(true)}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "refunded = false, want true; amount = 6, want 99", ae.Actual)

	err = assertContractState(actx, nil, Assertion{Contract: "zzz", State: &StateExpect{}})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "no step saved it", ae.Actual)
}

func TestAssertCount(t *testing.T) {
	actx := testContext(t)
	count := func(n int) *int { return &n }

	assert.NoError(t, assertCount(actx, Assertion{Count: count(2)}))
	assert.NoError(t, assertCount(actx, Assertion{Status: "refunded", Count: count(1)}))
	assert.NoError(t, assertCount(actx, Assertion{Status: "expired", Count: count(0)}))

	assert.Error(t, assertCount(actx, Assertion{Status: "active", Count: count(2)}))
	assert.ErrorContains(t, assertCount(actx, Assertion{Status: "frozen", Count: count(0)}), "unknown status")
}

func TestEvaluateAssertions(t *testing.T) {
	actx := testContext(t)
	result := &Result{Events: testEvents()}
	two := 2

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertCount, Count: &two},
		{Type: AssertEventOrder, Contract: "b", Events: []string{"created", "claimed"}},
		{Type: "final_state"},
	}, actx)

	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertion 1: Assertion failed: event_order")
	assert.Contains(t, failures[1], `assertion 2: unknown assertion type "final_state"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertEventOrder,
		Expected: "a events [created]",
		Actual:   "[created refunded]",
		Events:   testEvents()[:1],
	}

	assert.Equal(t, "Assertion failed: event_order\n"+
		"  Expected: a events [created]\n"+
		"  Actual: [created refunded]\n"+
		"\nEvents:\n"+
		"  [1] a created by alice at 1\n", err.Error())
}
