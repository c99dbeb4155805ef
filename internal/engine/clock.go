package engine

import "sync/atomic"

// Clock is the monotonic logical clock behind step and element timestamps.
//
// All timestamps are strictly increasing values from this clock. Wall-clock
// time is never used for ordering.
//
// Clock is safe for concurrent use, but a Session only advances it from the
// goroutine driving the session.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific value.
// Used to resume numbering after a recorded trace.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next timestamp and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued timestamp without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
