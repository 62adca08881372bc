package testutil

import (
	"sync"
	"time"
)

// ClockEpoch is the first instant returned by a DeterministicClock.
var ClockEpoch = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// DeterministicClock returns timestamps that advance one second per call.
//
// This keeps journal timestamps stable across test runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	next time.Time
}

// NewDeterministicClock creates a clock whose first Now() is ClockEpoch.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{next: ClockEpoch}
}

// Now returns the current instant and advances the clock by one second.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(time.Second)
	return now
}

// Reset rewinds the clock to ClockEpoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = ClockEpoch
}
