//go:build linux

package gpio

import (
	"fmt"
	"log"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// EdgeInput is the pulse input line. Every transition calls the edge
// callback from the gpiocdev event goroutine.
type EdgeInput struct {
	line *gpiocdev.Line
}

// NewEdgeInput requests the line with detection on both edges.
func NewEdgeInput(chip string, offset int, onEdge func()) (*EdgeInput, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { onEdge() }))
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", offset, err)
	}
	return &EdgeInput{line: line}, nil
}

// Level returns the current level of the line, read at call time.
func (in *EdgeInput) Level() (bool, error) {
	v, err := in.line.Value()
	if err != nil {
		return false, fmt.Errorf("read input pin: %w", err)
	}
	return v == 1, nil
}

// Close releases the line.
func (in *EdgeInput) Close() error {
	return in.line.Close()
}

// LineOutput is a digital output line.
type LineOutput struct {
	line *gpiocdev.Line
}

// NewOutput requests the line as an output at the given initial level.
func NewOutput(chip string, offset int, high bool) (*LineOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(levelValue(high)))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	return &LineOutput{line: line}, nil
}

// Set drives the line.
func (o *LineOutput) Set(high bool) error {
	return o.line.SetValue(levelValue(high))
}

// Close returns the line to an input before releasing it, so nothing is
// driven while the daemon is down.
func (o *LineOutput) Close() error {
	var errs []error
	if err := o.line.Reconfigure(gpiocdev.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure output pin: %w", err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Jumpers reads the mode jumpers on two inputs with pull-ups.
type Jumpers struct {
	Chip     string
	CF0, CF1 int
}

// ReadJumpers requests both lines, samples them once and releases them.
func (j Jumpers) ReadJumpers() (bool, bool, error) {
	lines, err := gpiocdev.RequestLines(j.Chip, []int{j.CF0, j.CF1},
		gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return false, false, fmt.Errorf("request jumper pins %d,%d: %w", j.CF0, j.CF1, err)
	}
	defer lines.Close()

	vals := make([]int, 2)
	if err := lines.Values(vals); err != nil {
		return false, false, fmt.Errorf("read jumper pins: %w", err)
	}
	return vals[0] == 1, vals[1] == 1, nil
}

// SoftPWM generates an 8-bit PWM signal on a plain output line by timing the
// high and low phases of each period.
type SoftPWM struct {
	out    *LineOutput
	phases *pwmPhases
	stop   chan struct{}
	done   chan struct{}
}

// NewSoftPWM requests the line as an output, low, with the given period.
// Call Start to begin generating.
func NewSoftPWM(chip string, offset int, period time.Duration) (*SoftPWM, error) {
	out, err := NewOutput(chip, offset, false)
	if err != nil {
		return nil, fmt.Errorf("pwm: %w", err)
	}
	return &SoftPWM{
		out:    out,
		phases: newPWMPhases(out, period),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// SetDuty takes effect at the start of the next period.
func (p *SoftPWM) SetDuty(duty uint8) error {
	p.phases.duty.Store(uint32(duty))
	return nil
}

// Start runs the PWM loop in its own goroutine.
func (p *SoftPWM) Start() {
	go p.run()
}

func (p *SoftPWM) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		p.phases.cycle()
	}
}

// Close stops the PWM loop, drives the line low and releases it. Close must
// follow Start.
func (p *SoftPWM) Close() error {
	close(p.stop)
	<-p.done
	if err := p.out.Set(false); err != nil {
		log.Printf("pwm: drive low on close: %v", err)
	}
	return p.out.Close()
}

func levelValue(high bool) int {
	if high {
		return 1
	}
	return 0
}
