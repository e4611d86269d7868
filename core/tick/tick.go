// Package tick defines the scalar time unit shared by every component in
// the emulator core: one tick is one 8 MHz master-clock cycle.
package tick

import "go.uber.org/atomic"

// Tick is the core's unit of time. One tick = one master-clock cycle.
type Tick uint64

// PerSecond is the number of ticks in one simulated second (8 MHz).
const PerSecond Tick = 8_000_000

// Counter is a monotonically non-decreasing tick counter, safe to read from
// a goroutine other than the one that advances it (the RPC status snapshot
// reads it concurrently with the emulator thread advancing it).
type Counter struct {
	v atomic.Uint64
}

// Advance adds n ticks to the counter and returns the new value.
func (c *Counter) Advance(n Tick) Tick {
	return Tick(c.v.Add(uint64(n)))
}

// Load returns the current tick count.
func (c *Counter) Load() Tick {
	return Tick(c.v.Load())
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.v.Store(0)
}

// Seconds converts a tick count to a duration in simulated seconds.
func (t Tick) Seconds() float64 {
	return float64(t) / float64(PerSecond)
}
