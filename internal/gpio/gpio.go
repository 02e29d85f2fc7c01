// Package gpio provides the decoder's pin-level interfaces with hardware
// abstraction. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Input is a digital input line.
type Input interface {
	// Level returns true when the line is high.
	Level() (bool, error)
}

// Output is a digital output line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error
}

// DutyOutput is an 8-bit PWM output.
type DutyOutput interface {
	// SetDuty sets the duty cycle: 0 is always low, 255 is always high.
	SetDuty(duty uint8) error
}

// Default chip and line offsets (BCM numbering on a Raspberry Pi).
const (
	DefaultChip   = "gpiochip0"
	DefaultPinIn  = 17 // RC pulse input
	DefaultPinOut = 18 // PWM output
	DefaultPinTX  = 27 // bit-banged serial TX
	DefaultPinCF0 = 22 // mode jumper 0
	DefaultPinCF1 = 23 // mode jumper 1
)

// JumperReader samples the two mode jumper inputs.
type JumperReader interface {
	// ReadJumpers returns the raw levels of CF0 and CF1. The inputs are
	// pulled up, so a fitted jumper reads low.
	ReadJumpers() (cf0High, cf1High bool, err error)
}
