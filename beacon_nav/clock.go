package beacon_nav

import "time"

// SystemClock reports milliseconds elapsed since it was created, using the
// monotonic reading of the wall clock.
type SystemClock struct {
	t0 time.Time
}

// NewSystemClock starts a clock at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{t0: time.Now()}
}

func (c *SystemClock) NowMillis() int64 {
	return time.Since(c.t0).Milliseconds()
}

// ManualClock is advanced explicitly; used by the simulator and tests.
type ManualClock struct {
	ms int64
}

func (c *ManualClock) NowMillis() int64 {
	return c.ms
}

// Set moves the clock to ms.
func (c *ManualClock) Set(ms int64) {
	c.ms = ms
}

// Advance moves the clock forward by d milliseconds.
func (c *ManualClock) Advance(d int64) {
	c.ms += d
}
