// Package counter extends an 8-bit free-running hardware counter into a 16-bit
// tick clock. The hardware owns the low byte and the record of which wraps
// have happened; handler context owns the high byte.
package counter

import (
	"fmt"

	"github.com/sweeney/rc-ledctrl/internal/irq"
)

// Tick is a 16-bit counter value. Differences between ticks are taken modulo
// 2^16.
type Tick uint16

// Hardware is the 8-bit counter that wraps and raises irq.Overflow.
type Hardware interface {
	Low() uint8
	// Ack consumes one wrap that has happened but has not been counted yet.
	// It reports false when every wrap so far has been acknowledged.
	Ack() bool
}

// ReadPolicy selects how Now composes the high and low bytes.
type ReadPolicy int

const (
	// ReadWindowed opens an interrupt window so a latched overflow is
	// applied, then reads the low byte, then the high byte. Wraps the
	// hardware reports after the low-byte read force a re-read.
	ReadWindowed ReadPolicy = iota

	// ReadDoubleHigh reads the high byte, then the low byte, then opens the
	// window and reads the high byte again. If the high byte moved, the low
	// byte is read again and paired with the new high byte.
	ReadDoubleHigh
)

func (p ReadPolicy) String() string {
	switch p {
	case ReadWindowed:
		return "windowed"
	case ReadDoubleHigh:
		return "double-high"
	}
	return fmt.Sprintf("ReadPolicy(%d)", int(p))
}

// ParseReadPolicy converts a configuration name into a ReadPolicy.
func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch s {
	case "", "windowed":
		return ReadWindowed, nil
	case "double-high":
		return ReadDoubleHigh, nil
	}
	return 0, fmt.Errorf("unknown clock read policy %q", s)
}

// Clock is the extended free-running clock. Now must be called from handler
// context: the high byte is only written there, and the irq controller
// serializes handlers.
//
// The overflow interrupt is a prompt, not the count. Every read first
// acknowledges the wraps the hardware has seen, so an overflow raised late, or
// coalesced while delivery was masked, never leaves the high byte behind.
type Clock struct {
	hw     Hardware
	ctrl   *irq.Controller
	policy ReadPolicy
	high   uint8
}

// New returns a Clock over hw and installs its overflow handler on ctrl.
func New(hw Hardware, ctrl *irq.Controller, policy ReadPolicy) *Clock {
	c := &Clock{hw: hw, ctrl: ctrl, policy: policy}
	ctrl.Handle(irq.Overflow, c.Overflow)
	return c
}

// Overflow is the counter overflow handler.
func (c *Clock) Overflow() {
	c.catchUp()
}

// catchUp counts every outstanding wrap and reports whether there was one.
func (c *Clock) catchUp() bool {
	moved := false
	for c.hw.Ack() {
		c.high++
		moved = true
	}
	return moved
}

// Now returns the current tick.
func (c *Clock) Now() Tick {
	if c.policy == ReadDoubleHigh {
		hi := c.high
		lo := c.hw.Low()
		c.ctrl.Window()
		c.catchUp()
		for c.high != hi {
			hi = c.high
			lo = c.hw.Low()
			c.catchUp()
		}
		return compose(hi, lo)
	}

	c.ctrl.Window()
	c.catchUp()
	lo := c.hw.Low()
	// A wrap between the low-byte read and here pairs a wrapped low byte
	// with a stale high byte.
	for c.catchUp() {
		lo = c.hw.Low()
	}
	return compose(c.high, lo)
}

func compose(hi, lo uint8) Tick {
	return Tick(hi)<<8 | Tick(lo)
}
