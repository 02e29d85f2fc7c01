package timing

import (
	"sort"
	"sync"
	"time"
)

// SimClock is a Clock driven by the caller. Events scheduled with At fire in
// time order as virtual time passes them; while an event runs, Now reports
// exactly the event's time.
type SimClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	events []simEvent
}

type simEvent struct {
	at  time.Duration
	seq uint64
	fn  func()
}

// NewSimClock returns a simulated clock at time zero.
func NewSimClock() *SimClock {
	return &SimClock{}
}

// Now returns the current virtual time.
func (c *SimClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// At schedules fn to run when virtual time reaches at. Events at the same
// time run in scheduling order. Scheduling in the past runs fn on the next
// advance.
func (c *SimClock) At(at time.Duration, fn func()) {
	c.mu.Lock()
	c.seq++
	c.events = append(c.events, simEvent{at: at, seq: c.seq, fn: fn})
	sort.Slice(c.events, func(i, j int) bool {
		if c.events[i].at != c.events[j].at {
			return c.events[i].at < c.events[j].at
		}
		return c.events[i].seq < c.events[j].seq
	})
	c.mu.Unlock()
}

// After schedules fn to run d after the current virtual time.
func (c *SimClock) After(d time.Duration, fn func()) {
	c.At(c.Now()+d, fn)
}

// AdvanceTo moves virtual time forward to t, firing every event due on the
// way. Events may schedule further events; those due before t fire too.
func (c *SimClock) AdvanceTo(t time.Duration) {
	for {
		c.mu.Lock()
		if len(c.events) == 0 || c.events[0].at > t {
			if t > c.now {
				c.now = t
			}
			c.mu.Unlock()
			return
		}
		ev := c.events[0]
		c.events = c.events[1:]
		if ev.at > c.now {
			c.now = ev.at
		}
		c.mu.Unlock()
		ev.fn()
	}
}

// Advance moves virtual time forward by d.
func (c *SimClock) Advance(d time.Duration) {
	c.AdvanceTo(c.Now() + d)
}

// WaitUntil advances virtual time to the deadline. The waiting code observes
// every event scheduled in between, as it would on hardware.
func (c *SimClock) WaitUntil(deadline time.Duration) {
	c.AdvanceTo(deadline)
}

// Scheduled returns the number of events not yet fired.
func (c *SimClock) Scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
