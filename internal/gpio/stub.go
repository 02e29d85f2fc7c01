//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// EdgeInput is not available on non-Linux platforms.
type EdgeInput struct{}

// NewEdgeInput returns an error on non-Linux platforms.
func NewEdgeInput(chip string, offset int, onEdge func()) (*EdgeInput, error) {
	return nil, errUnsupported
}

// Level is not implemented on non-Linux platforms.
func (in *EdgeInput) Level() (bool, error) { return false, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (in *EdgeInput) Close() error { return nil }

// LineOutput is not available on non-Linux platforms.
type LineOutput struct{}

// NewOutput returns an error on non-Linux platforms.
func NewOutput(chip string, offset int, high bool) (*LineOutput, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *LineOutput) Set(high bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (o *LineOutput) Close() error { return nil }

// Jumpers is not available on non-Linux platforms.
type Jumpers struct {
	Chip     string
	CF0, CF1 int
}

// ReadJumpers returns an error on non-Linux platforms.
func (j Jumpers) ReadJumpers() (bool, bool, error) { return false, false, errUnsupported }

// SoftPWM is not available on non-Linux platforms.
type SoftPWM struct{}

// NewSoftPWM returns an error on non-Linux platforms.
func NewSoftPWM(chip string, offset int, period time.Duration) (*SoftPWM, error) {
	return nil, errUnsupported
}

// SetDuty is not implemented on non-Linux platforms.
func (p *SoftPWM) SetDuty(duty uint8) error { return errUnsupported }

// Start is not implemented on non-Linux platforms.
func (p *SoftPWM) Start() {}

// Close is not implemented on non-Linux platforms.
func (p *SoftPWM) Close() error { return nil }
