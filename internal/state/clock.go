package state

import (
	"math"
	"sync/atomic"
)

// Clock holds the application time scale. Zero means simulation time is frozen.
type Clock struct {
	bits atomic.Uint64
}

// NewClock returns a clock with the given initial scale.
func NewClock(scale float64) *Clock {
	c := &Clock{}
	c.SetScale(scale)
	return c
}

// Scale returns the current time scale.
func (c *Clock) Scale() float64 {
	return math.Float64frombits(c.bits.Load())
}

// SetScale sets the time scale. Negative values are stored as zero.
func (c *Clock) SetScale(scale float64) {
	c.bits.Store(math.Float64bits(math.Max(0, scale)))
}

// Pause freezes time.
func (c *Clock) Pause() { c.SetScale(0) }

// Resume restores normal speed.
func (c *Clock) Resume() { c.SetScale(1) }

// Paused reports whether time is frozen.
func (c *Clock) Paused() bool { return c.Scale() == 0 }
