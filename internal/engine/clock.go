package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies host time in nanoseconds since the Unix epoch.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock but never goes backwards: a reading
// earlier than one already returned is replaced by that earlier maximum.
//
// Thread-safety: SystemClock is safe for concurrent use (atomic operations).
type SystemClock struct {
	last atomic.Uint64
}

// NewSystemClock creates a SystemClock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current time, non-decreasing across calls.
func (c *SystemClock) Now() uint64 {
	for {
		n := uint64(time.Now().UnixNano())
		prev := c.last.Load()
		if n <= prev {
			return prev
		}
		if c.last.CompareAndSwap(prev, n) {
			return n
		}
	}
}
