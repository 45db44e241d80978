package sim

import (
	"sync"
	"time"
)

// Clock is the system counter shared by every core. Now returns the
// physical count in ticks of Frequency Hz.
type Clock interface {
	Now() uint64
	Frequency() uint32
}

// Advancer is implemented by clocks that only move when told to. A core
// waiting for an interrupt on such a clock jumps straight to the next timer
// deadline.
type Advancer interface {
	Clock
	Advance(ticks uint64)
	AdvanceTo(tick uint64)
}

// ManualClock stands still until advanced.
type ManualClock struct {
	mu   sync.Mutex
	now  uint64
	freq uint32
}

func NewManualClock(freq uint32) *ManualClock {
	return &ManualClock{freq: freq}
}

func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Frequency() uint32 { return c.freq }

func (c *ManualClock) Advance(ticks uint64) {
	c.mu.Lock()
	c.now += ticks
	c.mu.Unlock()
}

// AdvanceTo moves the clock forward to tick. It never goes backwards.
func (c *ManualClock) AdvanceTo(tick uint64) {
	c.mu.Lock()
	if tick > c.now {
		c.now = tick
	}
	c.mu.Unlock()
}

// StepClock advances by a fixed step every time it is read, so busy-wait
// loops make progress without a host timer.
type StepClock struct {
	ManualClock
	step uint64
}

func NewStepClock(freq uint32, step uint64) *StepClock {
	if step == 0 {
		step = 1
	}
	return &StepClock{ManualClock: ManualClock{freq: freq}, step: step}
}

func (c *StepClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now += c.step
	return now
}

// WallClock follows host monotonic time.
type WallClock struct {
	start time.Time
	freq  uint32
}

func NewWallClock(freq uint32) *WallClock {
	return &WallClock{start: time.Now(), freq: freq}
}

func (c *WallClock) Now() uint64 {
	d := time.Since(c.start)
	sec := uint64(d / time.Second)
	frac := uint64(d % time.Second)
	return sec*uint64(c.freq) + frac*uint64(c.freq)/uint64(time.Second)
}

func (c *WallClock) Frequency() uint32 { return c.freq }

var (
	_ Advancer = (*ManualClock)(nil)
	_ Advancer = (*StepClock)(nil)
	_ Clock    = (*WallClock)(nil)
)
