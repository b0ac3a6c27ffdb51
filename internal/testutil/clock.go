// Package testutil holds helpers shared by tests across packages.
package testutil

import "sync"

// ManualClock is a host clock under test control. It reports whatever time
// was last set and never advances on its own.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

// NewManualClock creates a clock reading start.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current reading.
func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to ns. Moving backwards is allowed; tests use it to
// replay a scenario.
func (c *ManualClock) Set(ns uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ns
}

// Advance moves the clock forward by d nanoseconds and returns the new
// reading.
func (c *ManualClock) Advance(d uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
