// Package control runs the main loop: it waits for a completed pulse, claims
// it with interrupts masked, drives the output, reports it over serial and
// resumes edge capture.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"strconv"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/capture"
	"github.com/sweeney/rc-ledctrl/internal/gpio"
	"github.com/sweeney/rc-ledctrl/internal/irq"
	"github.com/sweeney/rc-ledctrl/internal/logic"
	"github.com/sweeney/rc-ledctrl/internal/serial"
)

// State is the loop's position in the hand-off protocol.
type State int

const (
	// StateIdle: no measurement claimed, edge capture running.
	StateIdle State = iota
	// StateReporting: one measurement claimed, delivery masked.
	StateReporting
)

func (s State) String() string {
	if s == StateReporting {
		return "REPORTING"
	}
	return "IDLE"
}

// MaxLineLen is the longest diagnostic line: mode, tab, "-32768", tab, a
// three-digit duty, CR LF.
const MaxLineLen = 1 + 1 + 6 + 1 + 3 + 2

// Observer receives each completed report after delivery is re-enabled. It
// runs on the loop goroutine and must not block.
type Observer interface {
	Observe(r logic.Report)
}

// Observers fans a report out to several observers in order.
type Observers []Observer

// Observe passes r to every observer.
func (o Observers) Observe(r logic.Report) {
	for _, ob := range o {
		ob.Observe(r)
	}
}

// Loop is the main control loop.
type Loop struct {
	ctrl   *irq.Controller
	cap    *capture.Capture
	mapper *logic.Mapper
	pwm    gpio.DutyOutput
	sink   serial.Sink
	mode   logic.Mode

	// Now stamps reports; defaults to time.Now.
	Now func() time.Time
	// Observer, if set, sees every report.
	Observer Observer

	state State
}

// New creates a loop. Call Start before Run or Step.
func New(ctrl *irq.Controller, c *capture.Capture, mapper *logic.Mapper, pwm gpio.DutyOutput, sink serial.Sink, mode logic.Mode) *Loop {
	return &Loop{
		ctrl:   ctrl,
		cap:    c,
		mapper: mapper,
		pwm:    pwm,
		sink:   sink,
		mode:   mode,
		Now:    time.Now,
	}
}

// Start writes the mapper's initial duty and enables interrupt delivery.
func (l *Loop) Start() error {
	if err := l.pwm.SetDuty(l.mapper.Duty()); err != nil {
		return fmt.Errorf("set initial duty: %w", err)
	}
	l.ctrl.Enable()
	return nil
}

// State returns the loop's current state.
func (l *Loop) State() State {
	return l.state
}

// Run polls for measurements until ctx is done. Cancellation is only
// observed between iterations; a REPORTING cycle always completes. Output
// errors are logged and the measurement is skipped.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		handled, err := l.Step()
		if err != nil {
			log.Printf("report error: %v", err)
		}
		if !handled {
			runtime.Gosched()
		}
	}
}

// Step performs one iteration. It returns false without doing anything if no
// measurement is ready. IO errors during REPORTING do not abort the cycle:
// delivery is always resumed, and the errors are returned together.
func (l *Loop) Step() (bool, error) {
	if !l.cap.Ready() {
		return false, nil
	}

	saved := l.ctrl.Disable()
	m, ok := l.cap.Claim()
	if !ok {
		// A falling edge restarted acquisition between the poll and the mask.
		l.ctrl.Restore(saved)
		return false, nil
	}
	l.state = StateReporting

	var errs []error
	res := l.mapper.Apply(m.Width)
	if res.Updated {
		if err := l.pwm.SetDuty(res.Duty); err != nil {
			errs = append(errs, fmt.Errorf("set duty: %w", err))
		}
	}
	if err := l.sink.Print(FormatLine(l.mode, m.Width, res.Label())); err != nil {
		errs = append(errs, fmt.Errorf("report: %w", err))
	}

	// Edges seen while masked belong to pulses that were cut short; drop
	// them so the next measurement starts from its own falling edge.
	dropped := l.ctrl.Clear(irq.Edge)
	l.cap.Release()
	l.state = StateIdle
	l.ctrl.Restore(saved)

	if l.Observer != nil {
		l.Observer.Observe(logic.Report{
			Timestamp:    l.Now(),
			Mode:         l.mode,
			Result:       res,
			DroppedEdges: dropped,
		})
	}
	return true, errors.Join(errs...)
}

// FormatLine renders a diagnostic line: mode digit, tab, signed width, tab,
// label, CR LF.
func FormatLine(mode logic.Mode, width int16, label string) string {
	b := make([]byte, 0, MaxLineLen)
	b = append(b, mode.Digit(), '\t')
	b = strconv.AppendInt(b, int64(width), 10)
	b = append(b, '\t')
	b = append(b, label...)
	b = append(b, '\r', '\n')
	return string(b)
}

// LineTime returns the worst-case time to transmit one diagnostic line at
// the given per-byte time.
func LineTime(byteTime time.Duration) time.Duration {
	return MaxLineLen * byteTime
}
