package engine

import "sync/atomic"

// Clock hands out generation numbers for stream-triggered primitive
// requests. Generations only grow; identical stream values arriving twice
// get two different generations.
type Clock struct {
	gen atomic.Int64
}

// NewClock returns a clock whose first generation is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock resuming after start. Replay uses it to
// continue from the last journaled generation.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.gen.Store(start)
	return c
}

// Next advances the clock and returns the new generation.
func (c *Clock) Next() int64 {
	return c.gen.Add(1)
}

// Current returns the last generation handed out.
func (c *Clock) Current() int64 {
	return c.gen.Load()
}

// Observe moves the clock forward to at least gen.
func (c *Clock) Observe(gen int64) {
	for {
		cur := c.gen.Load()
		if gen <= cur || c.gen.CompareAndSwap(cur, gen) {
			return
		}
	}
}
