// Package serial transmits diagnostic output: a bit-banged 8N1 transmitter on
// a GPIO line, and a host UART with the same contract.
package serial

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/gpio"
	"github.com/sweeney/rc-ledctrl/internal/timing"
)

// Sink is a transmit-only byte stream.
type Sink interface {
	// Transmit sends one byte, returning when it has left the line.
	Transmit(b byte) error
	// Print sends each byte of s in order. No terminator is added.
	Print(s string) error
}

// frameBits is start + 8 data + stop.
const frameBits = 10

// BitInterval returns the duration of one bit at the given baud rate.
func BitInterval(baud int) time.Duration {
	return time.Second / time.Duration(baud)
}

// ByteTime returns the time one 8N1 frame occupies the line.
func ByteTime(baud int) time.Duration {
	return frameBits * BitInterval(baud)
}

// SoftUART bit-bangs 8N1 frames on an output line. Transmit blocks for a full
// frame; every bit edge is placed against a deadline measured from the start
// bit, so per-bit overhead does not accumulate across the frame.
type SoftUART struct {
	pin gpio.Output
	clk timing.Clock
	bit time.Duration
}

// NewSoftUART returns a transmitter at the given baud rate. The line should
// already be idle high.
func NewSoftUART(pin gpio.Output, clk timing.Clock, baud int) *SoftUART {
	return &SoftUART{pin: pin, clk: clk, bit: BitInterval(baud)}
}

// BitInterval returns the configured bit duration.
func (u *SoftUART) BitInterval() time.Duration {
	return u.bit
}

// Transmit sends one frame: start bit low, data bits LSB first, stop bit
// high. The line is left idle high.
func (u *SoftUART) Transmit(b byte) error {
	start := u.clk.Now()
	for i := 0; i < frameBits; i++ {
		var high bool
		switch {
		case i == 0:
			high = false
		case i == frameBits-1:
			high = true
		default:
			high = b&(1<<(i-1)) != 0
		}
		if err := u.pin.Set(high); err != nil {
			err = fmt.Errorf("transmit %#02x bit %d: %w", b, i, err)
			if rerr := u.pin.Set(true); rerr != nil {
				err = errors.Join(err, fmt.Errorf("return line to idle: %w", rerr))
			}
			return err
		}
		u.clk.WaitUntil(start + time.Duration(i+1)*u.bit)
	}
	return nil
}

// Print transmits each byte of s.
func (u *SoftUART) Print(s string) error {
	for i := 0; i < len(s); i++ {
		if err := u.Transmit(s[i]); err != nil {
			return err
		}
	}
	return nil
}
