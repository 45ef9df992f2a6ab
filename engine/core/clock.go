package core

import "time"

// Clock measures wall time for the front and back ends. The zero value is a
// stopped clock.
type Clock struct {
	startTime time.Time
	elapsed   time.Duration
	running   bool
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = time.Since(c.startTime)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = time.Now()
	c.elapsed = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.Update()
	c.running = false
}

func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

// Seconds is the elapsed time as floating point seconds.
func (c *Clock) Seconds() float64 {
	return c.elapsed.Seconds()
}

// Milliseconds is the elapsed time truncated to whole milliseconds, the
// unit refdef times are expressed in.
func (c *Clock) Milliseconds() int {
	return int(c.elapsed.Milliseconds())
}
