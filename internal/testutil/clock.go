package testutil

import (
	"sync"
	"time"
)

// clockEpoch is the fixed starting instant of every DeterministicClock.
// Scenario runs that perform the same steps stamp the same times, so
// renders compare byte-for-byte against golden files.
var clockEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock hands out strictly increasing timestamps for tests.
//
// Each call to Now advances by one second from a fixed epoch. Unlike the
// wall clock it can be reset, so the same scenario can run repeatedly
// with identical timestamps.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock at the epoch. The first call to
// Now returns epoch+1s.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Now advances the clock one second and returns the new instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return clockEpoch.Add(time.Duration(c.seq) * time.Second)
}

// Current returns the last instant handed out without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clockEpoch.Add(time.Duration(c.seq) * time.Second)
}

// Reset rewinds the clock to the epoch for test reuse.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
