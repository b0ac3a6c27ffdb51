package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/timelock/internal/digest"
)

// TraceSnapshot captures the trace of a scenario run. Lock ids are replaced
// by saved names so the snapshot does not change with the hash function.
type TraceSnapshot struct {
	ScenarioName string
	Steps        []StepTrace
	Events       []EventTrace
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for
// digest.MarshalCanonical.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, st := range s.Steps {
		m := map[string]any{
			"index":   st.Index,
			"op":      st.Op,
			"as":      st.As,
			"at":      st.At,
			"success": st.Success,
			"message": st.Message,
		}
		if st.Contract != "" {
			m["contract"] = st.Contract
		}
		if st.Code != "" {
			m["code"] = st.Code
		}
		if st.Receipt != nil {
			m["receipt"] = *st.Receipt
		}
		steps[i] = m
	}

	events := make([]any, len(s.Events))
	for i, ev := range s.Events {
		m := map[string]any{
			"seq":      ev.Seq,
			"contract": ev.Contract,
			"kind":     ev.Kind,
			"caller":   ev.Caller,
			"at":       ev.At,
		}
		if len(ev.Detail) > 0 {
			m["detail"] = ev.Detail
		}
		events[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"events":        events,
	}
}

// Snapshot renders the canonical JSON trace of result.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Steps:        result.Steps,
		Events:       result.Events,
	}
	return digest.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
