// Package quality implements the adaptive JPEG quality controller that
// steps the screencast's quality setting from a sliding window of frame
// round-trip latencies.
package quality

import "sync"

const (
	// Min and Max bound the quality value the controller will ever produce.
	Min = 20
	Max = 80

	initial    = 70
	windowSize = 5

	highLatencyMs = 200
	lowLatencyMs  = 80
	stepDown      = 10
	stepUp        = 5
)

// Controller tracks a sliding window of screencast-frame latencies and
// steps a JPEG quality value accordingly. A window smaller than windowSize
// never triggers a step — a single outlier must not swing quality on its
// own.
type Controller struct {
	mu        sync.Mutex
	quality   int
	latencies []int
	changed   bool
}

// New creates a Controller starting at the initial quality of 70.
func New() *Controller {
	return &Controller{quality: initial}
}

// Clamp bounds a latency sample to a plausible range before it is fed to
// the controller. Negative values (clock skew) and implausibly large ones
// (a client that went to sleep) are clamped rather than allowed to swing
// the average.
func Clamp(latencyMs int) int {
	if latencyMs < 0 {
		return 0
	}
	if latencyMs > 10000 {
		return 10000
	}
	return latencyMs
}

// Sample pushes a latency sample (milliseconds) into the window. Once the
// window is full it is evaluated and reset; quality moves by at most one
// step per full window.
func (c *Controller) Sample(latencyMs int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencies = append(c.latencies, latencyMs)
	if len(c.latencies) < windowSize {
		return
	}

	sum := 0
	for _, l := range c.latencies {
		sum += l
	}
	mean := sum / windowSize
	c.latencies = c.latencies[:0]

	switch {
	case mean > highLatencyMs:
		next := c.quality - stepDown
		if next < Min {
			next = Min
		}
		if next != c.quality {
			c.quality = next
			c.changed = true
		}
	case mean < lowLatencyMs:
		next := c.quality + stepUp
		if next > Max {
			next = Max
		}
		if next != c.quality {
			c.quality = next
			c.changed = true
		}
	}
}

// Quality returns the current quality value.
func (c *Controller) Quality() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}

// ShouldRestart is a take-once flag: it returns true exactly once per
// change, then false until the next change.
func (c *Controller) ShouldRestart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.changed {
		c.changed = false
		return true
	}
	return false
}
