package store

import "sync/atomic"

// Clock hands out the store's append sequence numbers.
//
// Every record gets a strictly increasing seq, so the artifact log has a
// total order independent of wall-clock time and of which campaign worker
// finished first. Reopening a store resumes after the highest stored seq.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
