package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a sequence of lifecycle
// operations with synthetic callers and clock readings, plus assertions on
// the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ClaimGraceNS configures the engine's claim grace period.
	ClaimGraceNS uint64 `yaml:"claim_grace_ns,omitempty"`

	// MinTimelockNS configures the engine's minimum lock duration.
	MinTimelockNS uint64 `yaml:"min_timelock_ns,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and history.
	// Supported types: contract_state, event_order, count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation.
type Step struct {
	// Op is new_contract, claim, refund or release.
	Op string `yaml:"op"`

	// As is the caller identity.
	As string `yaml:"as,omitempty"`

	// At is the clock reading in nanoseconds.
	At uint64 `yaml:"at"`

	// Save names the created contract so later steps can refer to it
	// (new_contract only).
	Save string `yaml:"save,omitempty"`

	// Contract names a saved contract (claim, refund). An unknown name is
	// used verbatim as the lock id.
	Contract string `yaml:"contract,omitempty"`

	Args StepArgs `yaml:"args,omitempty"`

	// Transfer scripts the gateway for a claim or refund: ok (default),
	// fail, or hold. A held operation stays suspended until a release step.
	Transfer string `yaml:"transfer,omitempty"`

	// Expect checks the outcome. For a held operation it goes on the
	// release step instead.
	Expect *Expect `yaml:"expect,omitempty"`
}

// StepArgs are the request fields. Secret is hashed into the hashlock when
// Hashlock is empty.
type StepArgs struct {
	Receiver string `yaml:"receiver,omitempty"`
	Amount   uint64 `yaml:"amount,omitempty"`
	Hashlock string `yaml:"hashlock,omitempty"`
	Secret   string `yaml:"secret,omitempty"`
	Timelock uint64 `yaml:"timelock,omitempty"`
	LedgerID string `yaml:"ledger_id,omitempty"`
	Preimage string `yaml:"preimage,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	Success bool   `yaml:"success"`
	Code    string `yaml:"code,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Contract names a saved contract (contract_state, event_order).
	Contract string `yaml:"contract,omitempty"`

	// State holds the expected record fields (contract_state).
	// Subset match - only specified fields are validated.
	State *StateExpect `yaml:"expect,omitempty"`

	// Events is the exact expected event kind sequence (event_order).
	Events []string `yaml:"events,omitempty"`

	// Status filters the records counted (count). Empty counts all.
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of records (count).
	Count *int `yaml:"count,omitempty"`
}

// StateExpect lists record fields to compare. Nil fields are ignored.
type StateExpect struct {
	Withdrawn *bool   `yaml:"withdrawn,omitempty"`
	Refunded  *bool   `yaml:"refunded,omitempty"`
	Preimage  *string `yaml:"preimage,omitempty"`
	InFlight  *bool   `yaml:"in_flight,omitempty"`
	Amount    *uint64 `yaml:"amount,omitempty"`
}

// Operation and assertion names.
const (
	OpNewContract = "new_contract"
	OpClaim       = "claim"
	OpRefund      = "refund"
	OpRelease     = "release"

	TransferOK   = "ok"
	TransferFail = "fail"
	TransferHold = "hold"

	AssertContractState = "contract_state"
	AssertEventOrder    = "event_order"
	AssertCount         = "count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	held := false
	for i, step := range s.Steps {
		switch step.Op {
		case OpNewContract:
			if step.Transfer != "" {
				return fmt.Errorf("step %d: transfer only applies to claim and refund", i)
			}
		case OpClaim, OpRefund:
			switch step.Transfer {
			case "", TransferOK, TransferFail:
			case TransferHold:
				if held {
					return fmt.Errorf("step %d: an operation is already held", i)
				}
				if step.Expect != nil {
					return fmt.Errorf("step %d: a held operation's expect belongs on the release step", i)
				}
				held = true
			default:
				return fmt.Errorf("step %d: unknown transfer %q", i, step.Transfer)
			}
		case OpRelease:
			if !held {
				return fmt.Errorf("step %d: release without a held operation", i)
			}
			held = false
		default:
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
		if step.Op != OpRelease && step.As == "" {
			return fmt.Errorf("step %d: as is required", i)
		}
	}
	if held {
		return fmt.Errorf("held operation is never released")
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertContractState:
			if a.Contract == "" || a.State == nil {
				return fmt.Errorf("assertion %d: contract_state needs contract and expect", i)
			}
		case AssertEventOrder:
			if a.Contract == "" || len(a.Events) == 0 {
				return fmt.Errorf("assertion %d: event_order needs contract and events", i)
			}
		case AssertCount:
			if a.Count == nil {
				return fmt.Errorf("assertion %d: count needs count", i)
			}
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}

	return nil
}
