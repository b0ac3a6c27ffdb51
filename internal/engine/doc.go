// Package engine implements the contract lifecycle: create, claim and
// refund.
//
// ARCHITECTURE:
//
// Every state change is a store.Update: one atomic read-modify-write that
// validates, mutates and appends an event, or does nothing. No lock is held
// across the ledger transfer, so claims and refunds both run as three steps:
//
//  1. Update: validate, set the in-flight marker tagged with the operation
//  2. Gateway.Transfer: the only suspension point, paying the receiver on
//     claim and the sender on refund, keyed by the lock id as custody
//  3. Update: re-read the record and finalize, or report that another
//     operation finalized it first
//
// While a marker is live every other claim fails, and refunds fail with
// ClaimInProgress or RefundInProgress. A claim marker stops being live at
// timelock+grace and a refund marker grace after it was set, so an
// operation whose resumption never happens cannot lock the sender out
// forever. A gateway that enforces custody pays a lock out at most once.
//
// Callers pass identity and time explicitly. The engine's own Clock is read
// only to stamp the resumption step.
package engine
