// Package timing provides monotonic time and deadline waits for code with
// microsecond budgets. The real clock busy-waits; the simulated clock moves
// virtual time and fires scheduled events, so timing-sensitive logic runs
// unchanged in tests.
package timing

import "time"

// Clock is a monotonic time source measured from an arbitrary origin.
type Clock interface {
	// Now returns the time elapsed since the clock's origin.
	Now() time.Duration

	// WaitUntil blocks until Now() >= deadline. It returns immediately if
	// the deadline has passed.
	WaitUntil(deadline time.Duration)
}

// Spin is a Clock backed by the OS monotonic clock. WaitUntil busy-waits
// rather than sleeping: the scheduler's sleep granularity is coarser than a
// serial bit interval.
type Spin struct {
	origin time.Time
}

// NewSpin returns a Spin clock whose origin is now.
func NewSpin() *Spin {
	return &Spin{origin: time.Now()}
}

// Now returns the monotonic time since the origin.
func (s *Spin) Now() time.Duration {
	return time.Since(s.origin)
}

// WaitUntil spins until the deadline.
func (s *Spin) WaitUntil(deadline time.Duration) {
	for s.Now() < deadline {
	}
}
