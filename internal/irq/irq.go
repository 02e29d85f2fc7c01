// Package irq models interrupt delivery on a single-core controller: a main
// context that can mask delivery, and asynchronous lines whose handlers
// preempt it but never each other.
//
// Every line has one latched pending flag. A line raised while delivery is
// masked, or while another handler runs, sets its flag; repeated raises
// coalesce. Flags are serviced in line order when delivery resumes.
package irq

import "sync"

// Line identifies an interrupt source. Lower values have higher priority.
type Line uint8

const (
	// Edge fires on every transition of the pulse input pin.
	Edge Line = iota
	// Overflow fires when the 8-bit hardware counter wraps.
	Overflow

	numLines
)

func (l Line) String() string {
	switch l {
	case Edge:
		return "edge"
	case Overflow:
		return "overflow"
	}
	return "unknown"
}

// Handler is an interrupt service routine. It runs to completion and must not
// call Disable.
type Handler func()

// State is the delivery state saved by Disable: true if delivery was enabled.
type State bool

// Controller serializes handlers against each other and against the main
// context's critical sections.
type Controller struct {
	mu       sync.Mutex
	idle     *sync.Cond
	handlers [numLines]Handler
	pending  [numLines]bool
	masked   bool
	busy     bool
	active   Line
}

// NewController returns a controller with delivery masked, as after reset.
// Register handlers with Handle, then call Enable.
func NewController() *Controller {
	c := &Controller{masked: true}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Handle installs the handler for a line. It must be called before Enable.
func (c *Controller) Handle(l Line, h Handler) {
	c.mu.Lock()
	c.handlers[l] = h
	c.mu.Unlock()
}

// Raise signals an interrupt on the line. If delivery is possible the handler
// runs on the caller's goroutine before Raise returns; otherwise the line's
// pending flag is latched.
func (c *Controller) Raise(l Line) {
	c.mu.Lock()
	if c.masked || c.busy {
		c.pending[l] = true
		c.mu.Unlock()
		return
	}
	c.busy = true
	c.active = l
	c.mu.Unlock()
	c.dispatch(l)
}

// dispatch runs the handler for l, then any lines latched meanwhile, and
// finally marks the controller idle. The caller must have set busy.
func (c *Controller) dispatch(l Line) {
	for {
		c.call(l)

		c.mu.Lock()
		next, ok := c.nextPending(numLines)
		if !ok || c.masked {
			c.busy = false
			c.idle.Broadcast()
			c.mu.Unlock()
			return
		}
		c.pending[next] = false
		c.active = next
		c.mu.Unlock()
		l = next
	}
}

func (c *Controller) call(l Line) {
	if h := c.handlers[l]; h != nil {
		h()
	}
}

// nextPending returns the highest-priority latched line, skipping except.
// Callers hold mu.
func (c *Controller) nextPending(except Line) (Line, bool) {
	for l := Line(0); l < numLines; l++ {
		if l != except && c.pending[l] {
			return l, true
		}
	}
	return 0, false
}

// Window briefly re-opens delivery from inside a handler: every line latched
// so far, other than the one being handled, is serviced before Window
// returns. Outside handler context it does nothing.
func (c *Controller) Window() {
	c.mu.Lock()
	if !c.busy || c.masked {
		c.mu.Unlock()
		return
	}
	self := c.active
	for {
		next, ok := c.nextPending(self)
		if !ok {
			break
		}
		c.pending[next] = false
		c.active = next
		c.mu.Unlock()
		c.call(next)
		c.mu.Lock()
	}
	c.active = self
	c.mu.Unlock()
}

// Disable masks delivery and returns the previous state. If a handler is
// running, Disable waits for it to finish: on one core the main context
// cannot execute while a handler does.
func (c *Controller) Disable() State {
	c.mu.Lock()
	for c.busy {
		c.idle.Wait()
	}
	prev := State(!c.masked)
	c.masked = true
	c.mu.Unlock()
	return prev
}

// Restore returns delivery to a state saved by Disable.
func (c *Controller) Restore(s State) {
	if s {
		c.Enable()
	}
}

// Enable unmasks delivery. Lines latched while masked are serviced on the
// caller's goroutine before Enable returns.
func (c *Controller) Enable() {
	c.mu.Lock()
	c.masked = false
	if c.busy {
		c.mu.Unlock()
		return
	}
	next, ok := c.nextPending(numLines)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.pending[next] = false
	c.busy = true
	c.active = next
	c.mu.Unlock()
	c.dispatch(next)
}

// Clear discards the line's latched flag and reports whether one was set.
func (c *Controller) Clear(l Line) bool {
	c.mu.Lock()
	was := c.pending[l]
	c.pending[l] = false
	c.mu.Unlock()
	return was
}

// Pending reports whether the line's flag is latched.
func (c *Controller) Pending(l Line) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[l]
}

// Enabled reports whether delivery is currently unmasked.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.masked
}
