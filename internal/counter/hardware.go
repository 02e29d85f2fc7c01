package counter

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/irq"
	"github.com/sweeney/rc-ledctrl/internal/timing"
)

// wrapTicks is the number of ticks per hardware overflow.
const wrapTicks = 256

// FreeRunning is an 8-bit counter derived from a monotonic clock: it
// advances one count per period and wraps at 256. The clock is the only
// source of wraps; raised overflows just prompt the handler to count them.
type FreeRunning struct {
	clk    timing.Clock
	period time.Duration

	mu    sync.Mutex
	acked int64 // wraps since the epoch that have been acknowledged
}

// NewFreeRunning returns a counter advancing once per period of clk. Wraps
// before the call are not counted.
func NewFreeRunning(clk timing.Clock, period time.Duration) *FreeRunning {
	f := &FreeRunning{clk: clk, period: period}
	f.acked = f.wraps()
	return f
}

func (f *FreeRunning) wraps() int64 {
	return int64(f.clk.Now() / f.WrapPeriod())
}

// Low returns the current 8-bit count.
func (f *FreeRunning) Low() uint8 {
	return uint8(f.clk.Now() / f.period)
}

// Ack consumes one elapsed, unacknowledged wrap.
func (f *FreeRunning) Ack() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acked >= f.wraps() {
		return false
	}
	f.acked++
	return true
}

// WrapPeriod is the time between overflows.
func (f *FreeRunning) WrapPeriod() time.Duration {
	return wrapTicks * f.period
}

// Run raises irq.Overflow each time the counter wraps, until ctx is done.
// Raises may arrive late or coalesce while delivery is masked; the handler
// counts wraps through Ack, so neither loses time.
func (f *FreeRunning) Run(ctx context.Context, ctrl *irq.Controller) {
	wrap := f.WrapPeriod()
	next := (f.clk.Now()/wrap + 1) * wrap
	for {
		wait := next - f.clk.Now()
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return
		}
		now := f.clk.Now()
		for next <= now {
			ctrl.Raise(irq.Overflow)
			next += wrap
		}
	}
}

// Simulate schedules an irq.Overflow on sim at every wrap boundary.
func (f *FreeRunning) Simulate(sim *timing.SimClock, ctrl *irq.Controller) {
	wrap := f.WrapPeriod()
	var fire func()
	fire = func() {
		ctrl.Raise(irq.Overflow)
		sim.After(wrap, fire)
	}
	sim.At((sim.Now()/wrap+1)*wrap, fire)
}
