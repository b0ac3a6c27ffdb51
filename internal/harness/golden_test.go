package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_OmitsEmptyFields(t *testing.T) {
	receipt := uint64(3)
	result := &Result{
		Steps: []StepTrace{
			{Index: 0, Op: OpNewContract, As: "alice", At: 1, Success: false, Code: "EmptyField", Message: "Receiver cannot be empty"},
			{Index: 1, Op: OpClaim, As: "bob", At: 2, Contract: "lock", Success: true, Message: "Claim successful", Receipt: &receipt},
		},
		Events: []EventTrace{
			{Seq: 1, Contract: "lock", Kind: "refunded", Caller: "alice", At: 9},
		},
	}

	got, err := Snapshot("omit", result)
	require.NoError(t, err)
	assert.Equal(t, `{"events":[{"at":9,"caller":"alice","contract":"lock","kind":"refunded","seq":1}],`+
		`"scenario_name":"omit","steps":[`+
		`{"as":"alice","at":1,"code":"EmptyField","index":0,"message":"Receiver cannot be empty","op":"new_contract","success":false},`+
		`{"as":"bob","at":2,"contract":"lock","index":1,"message":"Claim successful","op":"claim","receipt":3,"success":true}]}`,
		string(got))
}

func TestSnapshot_EmptyResult(t *testing.T) {
	got, err := Snapshot("empty", NewResult())
	require.NoError(t, err)
	assert.Equal(t, `{"events":[],"scenario_name":"empty","steps":[]}`, string(got))
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/refund_after_expiry.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "refund_after_expiry", result))
}
