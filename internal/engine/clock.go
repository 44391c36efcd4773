package engine

import "sync/atomic"

// Clock is the logical clock that orders stored analyses.
//
// Every analysis written by the engine is stamped with a strictly
// increasing seq taken from the clock. History listings and cache lookups
// order by seq, never by wall-clock time, so two runs over the same batch
// store rows in the same order.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1. Used to resume
// after the highest seq already in the store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Observe advances the clock to at least seq. Values below the current
// position are ignored.
func (c *Clock) Observe(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
