package wait

import "time"

// Clock abstracts time so polling can be tested deterministically
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock uses the system's monotonic clock
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// FakeClock is a Clock whose Sleep advances time instantly.
// It is not safe for concurrent use.
type FakeClock struct {
	current time.Time
	slept   time.Duration

	// OnSleep, if set, runs after every Sleep with the new time
	OnSleep func(now time.Time)
}

// NewFakeClock starts at t, or at a fixed date when t is zero
func NewFakeClock(t time.Time) *FakeClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &FakeClock{current: t}
}

func (c *FakeClock) Now() time.Time { return c.current }

func (c *FakeClock) Sleep(d time.Duration) {
	c.Advance(d)
	if c.OnSleep != nil {
		c.OnSleep(c.current)
	}
}

// Advance moves the clock forward. Panics if d is negative.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("FakeClock.Advance: duration must be non-negative")
	}
	c.current = c.current.Add(d)
	c.slept += d
}

// Slept returns the total time slept or advanced
func (c *FakeClock) Slept() time.Duration { return c.slept }
