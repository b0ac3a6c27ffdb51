// Package harness runs lifecycle scenarios against the real engine and
// compares their traces with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: claim_before_expiry
//	description: "Receiver claims with the right preimage"
//	claim_grace_ns: 0
//	steps:
//	  - op: new_contract
//	    as: alice
//	    at: 1000
//	    save: lock
//	    args: { receiver: bob, amount: 100, secret: s3cret, timelock: 5000 }
//	  - op: claim
//	    as: bob
//	    at: 2000
//	    contract: lock
//	    args: { preimage: s3cret }
//	    expect: { success: true }
//	assertions:
//	  - type: contract_state
//	    contract: lock
//	    expect: { withdrawn: true, preimage: s3cret }
//	  - type: event_order
//	    contract: lock
//	    events: [created, claim_started, claimed]
//
// A claim or refund step may script its transfer with transfer: fail, or
// suspend it with transfer: hold. A held operation resumes at the next
// release step, whose at is the clock reading seen on resumption and whose
// expect applies to the held operation. Steps between hold and release run
// while it is in flight.
//
// # Assertion Types
//
//   - contract_state: compares stored fields (subset match)
//   - event_order: exact event kind sequence of one contract
//   - count: number of contracts with a status (all, active, expired, ...)
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite store, a MockGateway whose
// ordinals start at 1, a manual clock set from each step's at, and tokens
// claim-1, claim-2, ... and refund-1, refund-2, ... in step order. Traces
// carry saved names instead of lock ids, so identical scenarios produce
// identical bytes.
package harness
