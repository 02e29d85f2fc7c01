package gpio

import (
	"log"
	"sync/atomic"
	"time"
)

// pwmPhases times the high and low phases of a software PWM on one output.
// duty may be changed from any goroutine; cycle runs on one.
type pwmPhases struct {
	out    Output
	period time.Duration
	sleep  func(time.Duration)
	duty   atomic.Uint32

	failing bool
	fails   int
}

func newPWMPhases(out Output, period time.Duration) *pwmPhases {
	return &pwmPhases{out: out, period: period, sleep: time.Sleep}
}

// cycle runs one period at the current duty.
func (g *pwmPhases) cycle() {
	high := g.period * time.Duration(g.duty.Load()) / 255
	low := g.period - high
	if high > 0 {
		g.set(true)
		g.sleep(high)
	}
	if low > 0 {
		g.set(false)
		g.sleep(low)
	}
}

// set drives the line. A failing line is logged when it starts failing and
// when it recovers, not on every phase.
func (g *pwmPhases) set(high bool) {
	err := g.out.Set(high)
	if err != nil {
		g.fails++
		if !g.failing {
			log.Printf("pwm: %v", err)
		}
	} else if g.failing {
		log.Printf("pwm: line recovered after %d failed writes", g.fails)
		g.fails = 0
	}
	g.failing = err != nil
}
