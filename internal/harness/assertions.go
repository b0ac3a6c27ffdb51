package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/timelock/internal/store"
)

// AssertionContext provides what assertions need beyond the trace.
type AssertionContext struct {
	Ctx   context.Context
	Store store.Store
	IDs   map[string]string // saved name -> lock id
	Now   uint64            // clock reading after the last step
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Events   []EventTrace // Full history for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s %s by %s at %d\n", ev.Seq, ev.Contract, ev.Kind, ev.Caller, ev.At)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertContractState:
			err = assertContractState(actx, result.Events, a)
		case AssertEventOrder:
			err = assertEventOrder(result.Events, a)
		case AssertCount:
			err = assertCount(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

// assertContractState compares the stored record with the expected fields
// (subset match).
func assertContractState(actx *AssertionContext, events []EventTrace, a Assertion) error {
	id, ok := actx.IDs[a.Contract]
	if !ok {
		return &AssertionError{
			Type:     AssertContractState,
			Expected: fmt.Sprintf("saved contract %q", a.Contract),
			Actual:   "no step saved it",
		}
	}

	c, err := actx.Store.Get(actx.Ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertContractState,
			Expected: fmt.Sprintf("contract %q in store", a.Contract),
			Actual:   "not found",
		}
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", a.Contract, err)
	}

	want := a.State
	var mismatches []string
	check := func(field string, expected, actual any) {
		if expected != actual {
			mismatches = append(mismatches, fmt.Sprintf("%s = %v, want %v", field, actual, expected))
		}
	}
	if want.Withdrawn != nil {
		check("withdrawn", *want.Withdrawn, c.Withdrawn)
	}
	if want.Refunded != nil {
		check("refunded", *want.Refunded, c.Refunded)
	}
	if want.InFlight != nil {
		check("in_flight", *want.InFlight, c.InFlight != nil)
	}
	if want.Amount != nil {
		check("amount", *want.Amount, c.Amount)
	}
	if want.Preimage != nil {
		actual := "<none>"
		if c.Preimage != nil {
			actual = *c.Preimage
		}
		check("preimage", *want.Preimage, actual)
	}

	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertContractState,
			Expected: fmt.Sprintf("contract %q state to match", a.Contract),
			Actual:   strings.Join(mismatches, "; "),
			Events:   events,
		}
	}
	return nil
}

// assertEventOrder checks the exact event kind sequence of one contract.
func assertEventOrder(events []EventTrace, a Assertion) error {
	var kinds []string
	for _, ev := range events {
		if ev.Contract == a.Contract {
			kinds = append(kinds, ev.Kind)
		}
	}

	if !slices.Equal(kinds, a.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("%s events %v", a.Contract, a.Events),
			Actual:   fmt.Sprintf("%v", kinds),
			Events:   events,
		}
	}
	return nil
}

// assertCount checks how many records match a status filter.
func assertCount(actx *AssertionContext, a Assertion) error {
	status, err := store.ParseStatus(a.Status)
	if err != nil {
		return err
	}

	entries, err := actx.Store.List(actx.Ctx, store.Filter{Status: status, Now: actx.Now})
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if len(entries) != *a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s contracts", *a.Count, status),
			Actual:   fmt.Sprintf("%d", len(entries)),
		}
	}
	return nil
}
