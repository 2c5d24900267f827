package store

import "sync/atomic"

// Clock is a monotonic logical clock for write ordering.
//
// A transaction resumes the clock at the highest seq already stored, so
// seq keeps increasing across sessions. Seq values consumed by a rolled
// back write are not reused.
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock whose next value is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
