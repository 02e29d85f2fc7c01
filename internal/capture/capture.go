// Package capture timestamps input transitions and hands completed pulse
// measurements to the main loop.
//
// A pulse runs from a falling edge to the following rising edge. The edge
// handler only records timestamps; the width is computed by the consumer.
package capture

import (
	"sync/atomic"

	"github.com/sweeney/rc-ledctrl/internal/counter"
	"github.com/sweeney/rc-ledctrl/internal/gpio"
	"github.com/sweeney/rc-ledctrl/internal/irq"
)

// Measurement is one completed pulse copied out of the shared cell.
type Measurement struct {
	Start counter.Tick // falling edge
	End   counter.Tick // rising edge
	Width int16
}

// Width returns end - start as a signed 16-bit duration. Modular subtraction
// makes the result exact across counter wraparound for spans below 2^15.
func Width(start, end counter.Tick) int16 {
	return int16(end - start)
}

// Stats counts handler activity.
type Stats struct {
	Edges     uint32 // handler invocations
	Pulses    uint32 // rising edges that completed a pulse
	Resyncs   uint32 // falling edges that replaced an unfinished pulse start
	Unarmed   uint32 // rising edges with no falling edge to pair with
	ReadFails uint32 // edges dropped because the pin level could not be read
}

// cell is the state shared between the edge handler and the main loop.
// start, end and armed are written only by the handler and read by the main
// loop only with delivery masked. ready is polled without masking.
type cell struct {
	start counter.Tick
	end   counter.Tick
	armed bool
	ready atomic.Bool
}

// Capture is the edge handler and its shared measurement cell.
type Capture struct {
	ctrl *irq.Controller
	clk  *counter.Clock
	pin  gpio.Input
	cell cell

	edges, pulses, resyncs, unarmed, readFails atomic.Uint32
}

// New returns a Capture and installs HandleEdge on ctrl.
func New(ctrl *irq.Controller, clk *counter.Clock, pin gpio.Input) *Capture {
	c := &Capture{ctrl: ctrl, clk: clk, pin: pin}
	ctrl.Handle(irq.Edge, c.HandleEdge)
	return c
}

// HandleEdge is the edge interrupt handler. Polarity comes from the pin level
// at the time the handler runs, so coalesced edges still resolve to the
// line's current state.
func (c *Capture) HandleEdge() {
	now := c.clk.Now()
	c.edges.Add(1)

	high, err := c.pin.Level()
	if err != nil {
		c.readFails.Add(1)
		return
	}

	if !high {
		// Falling: a new pulse starts.
		if c.cell.armed {
			c.resyncs.Add(1)
		}
		c.cell.start = now
		c.cell.armed = true
		c.cell.ready.Store(false)
		return
	}

	// Rising: the pulse is complete if it had a start.
	if !c.cell.armed {
		c.unarmed.Add(1)
		return
	}
	c.cell.end = now
	c.cell.armed = false
	c.pulses.Add(1)
	c.cell.ready.Store(true)
}

// Ready reports whether a completed measurement is waiting.
func (c *Capture) Ready() bool {
	return c.cell.ready.Load()
}

// Claim copies the completed measurement out of the cell and clears the
// stored timestamps. It must be called with delivery masked. ok is false if
// the measurement was superseded by a new falling edge before the mask took
// effect.
func (c *Capture) Claim() (m Measurement, ok bool) {
	if !c.cell.ready.Load() {
		return Measurement{}, false
	}
	m = Measurement{
		Start: c.cell.start,
		End:   c.cell.end,
		Width: Width(c.cell.start, c.cell.end),
	}
	c.cell.start, c.cell.end = 0, 0
	return m, true
}

// Release clears the ready signal once the measurement has been consumed.
// It must be called with delivery masked.
func (c *Capture) Release() {
	c.cell.ready.Store(false)
}

// Stats returns a copy of the handler counters.
func (c *Capture) Stats() Stats {
	return Stats{
		Edges:     c.edges.Load(),
		Pulses:    c.pulses.Load(),
		Resyncs:   c.resyncs.Load(),
		Unarmed:   c.unarmed.Load(),
		ReadFails: c.readFails.Load(),
	}
}
