package shadertoy

import (
	"time"
)

// A FrameClock advances the time dependent uniforms once per rendered frame.
//
// The host loop reports the canvas size, mouse and device orientation through
// the setters. Tick copies them into the uniform table along with the
// timing values.
type FrameClock struct {
	now   func() time.Time
	start time.Time

	elapsed time.Duration
	delta   time.Duration
	frame   uint64

	resolution  [2]float32
	mouse       [4]float32
	orientation [4]float32
}

// NewFrameClock starts a clock. If now is nil, the wall clock is used.
func NewFrameClock(now func() time.Time) *FrameClock {
	if now == nil {
		now = time.Now
	}
	return &FrameClock{
		now:   now,
		start: now(),
	}
}

func (c *FrameClock) SetResolution(width, height float32) {
	c.resolution = [2]float32{width, height}
}

// SetMouse sets the iMouse value: the current position in xy and the
// position of the last click in zw.
func (c *FrameClock) SetMouse(mouse [4]float32) {
	c.mouse = mouse
}

func (c *FrameClock) SetOrientation(orientation [4]float32) {
	c.orientation = orientation
}

// Frame returns the number of ticks so far.
func (c *FrameClock) Frame() uint64 {
	return c.frame
}

// Elapsed returns the time between the start of the clock and the last tick.
func (c *FrameClock) Elapsed() time.Duration {
	return c.elapsed
}

// Delta returns the time between the last two ticks.
func (c *FrameClock) Delta() time.Duration {
	return c.delta
}

// Tick advances the clock and updates the entries of table that exist. The
// frame index written is the number of preceding ticks, so the first frame
// renders with iFrame == 0.
func (c *FrameClock) Tick(table UniformTable) {
	now := c.now()
	elapsed := now.Sub(c.start)
	if c.frame == 0 {
		c.delta = 0
	} else {
		c.delta = elapsed - c.elapsed
	}
	c.elapsed = elapsed

	if v, ok := table[UniformTime]; ok {
		v.Vec[0] = float32(c.elapsed.Seconds())
	}
	if v, ok := table[UniformTimeDelta]; ok {
		v.Vec[0] = float32(c.delta.Seconds())
	}
	if v, ok := table[UniformFrame]; ok {
		v.Int = int32(c.frame)
	}
	if v, ok := table[UniformDate]; ok {
		v.Vec = date(now)
	}
	if v, ok := table[UniformResolution]; ok {
		v.Vec[0], v.Vec[1] = c.resolution[0], c.resolution[1]
	}
	if v, ok := table[UniformMouse]; ok {
		v.Vec = c.mouse
	}
	if v, ok := table[UniformDeviceOrientation]; ok {
		v.Vec = c.orientation
	}
	c.frame++
}

// date returns the year, month (1-12), day of the month and seconds since
// midnight.
func date(t time.Time) [4]float32 {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return [4]float32{
		float32(t.Year()),
		float32(t.Month()),
		float32(t.Day()),
		float32(t.Sub(midnight).Seconds()),
	}
}
