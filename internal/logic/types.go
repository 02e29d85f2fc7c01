// Package logic contains the pure decoding logic: pulse classification, duty
// mapping, operating mode and report counting.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Mode is the operating mode selected by two jumpers at startup. Its value is
// the raw 2-bit pin pattern: bit 0 is CF0 high, bit 1 is CF1 high. The
// jumper inputs are pulled up, so a fitted jumper reads low.
type Mode uint8

const (
	ModeTest3  Mode = 0 // both jumpers fitted
	ModeTest1  Mode = 1 // jumper on CF1 only
	ModeTest2  Mode = 2 // jumper on CF0 only
	ModeNormal Mode = 3 // no jumpers
)

// ModeFromJumpers maps the two sampled pin levels onto a Mode. Every
// combination is a valid mode.
func ModeFromJumpers(cf0High, cf1High bool) Mode {
	var m Mode
	if cf0High {
		m |= 1
	}
	if cf1High {
		m |= 2
	}
	return m
}

// Digit returns the mode as the ASCII digit printed on diagnostic lines.
func (m Mode) Digit() byte {
	return '0' + byte(m&3)
}

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeTest1:
		return "test1"
	case ModeTest2:
		return "test2"
	case ModeTest3:
		return "test3"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Band is a classification result. Non-negative values index the configured
// band table; the sentinels mark widths outside every window.
type Band int

const (
	BandBelowRange Band = -1 // under the lowest window
	BandAboveRange Band = -2 // over the highest window
	BandGap        Band = -3 // between two windows

	// Indices of the default three-band table.
	BandLow  Band = 0
	BandMid  Band = 1
	BandHigh Band = 2
)

// InRange reports whether the band is one of the configured windows.
func (b Band) InRange() bool {
	return b >= 0
}

// OutOfRangeSymbol is printed in place of a band symbol for widths outside
// every window.
const OutOfRangeSymbol = '-'

// Mapping selects how a width becomes a duty.
type Mapping int

const (
	// MapDiscrete assigns each band's fixed duty.
	MapDiscrete Mapping = iota
	// MapLinear clamps the width into a span and rescales it to 0..255.
	MapLinear
)

func (m Mapping) String() string {
	switch m {
	case MapDiscrete:
		return "discrete"
	case MapLinear:
		return "linear"
	}
	return fmt.Sprintf("Mapping(%d)", int(m))
}

// ParseMapping converts a configuration name into a Mapping.
func ParseMapping(s string) (Mapping, error) {
	switch s {
	case "", "discrete":
		return MapDiscrete, nil
	case "linear":
		return MapLinear, nil
	}
	return 0, fmt.Errorf("unknown mapping %q", s)
}

// OutOfRange selects what the discrete mapping does with a width outside
// every window.
type OutOfRange int

const (
	// HoldOutput leaves the previous duty unchanged.
	HoldOutput OutOfRange = iota
	// DefaultOutput snaps to the configured default duty.
	DefaultOutput
)

func (o OutOfRange) String() string {
	switch o {
	case HoldOutput:
		return "hold"
	case DefaultOutput:
		return "default"
	}
	return fmt.Sprintf("OutOfRange(%d)", int(o))
}

// ParseOutOfRange converts a configuration name into an OutOfRange policy.
func ParseOutOfRange(s string) (OutOfRange, error) {
	switch s {
	case "", "hold":
		return HoldOutput, nil
	case "default":
		return DefaultOutput, nil
	}
	return 0, fmt.Errorf("unknown out-of-range policy %q", s)
}

// BandSpec is one classification window. A width w belongs to the band when
// Center-Lower < w < Center+Upper. Lower and Upper are separate so the window
// can be skewed to match the signal source.
type BandSpec struct {
	Name     string
	Symbol   byte
	Center   int
	Lower    int
	Upper    int
	TargetMV int
}

// Contains reports whether the width falls inside the window.
func (b BandSpec) Contains(width int16) bool {
	w := int(width)
	return w > b.Center-b.Lower && w < b.Center+b.Upper
}

// Result is the outcome of mapping one width.
type Result struct {
	Width  int16
	Band   Band
	Name   string // band name, or "below-range", "above-range" or "gap"
	Symbol byte   // band symbol, or OutOfRangeSymbol
	Duty   uint8
	// Updated is true when the mapper assigned a duty for this width and the
	// output should be written.
	Updated bool
	Linear  bool
}

// Label is the last field of a diagnostic line: the duty in decimal for the
// linear mapping, the band symbol otherwise.
func (r Result) Label() string {
	if r.Linear {
		return fmt.Sprintf("%d", r.Duty)
	}
	return string(r.Symbol)
}

// Report describes one completed REPORTING cycle.
type Report struct {
	Timestamp time.Time
	Mode      Mode
	Result    Result
	// DroppedEdges is true if edges arrived while the cycle was running and
	// were discarded.
	DroppedEdges bool
}

// Counts tracks reports since startup.
type Counts struct {
	Pulses       int
	Bands        []int // per configured band
	BelowRange   int
	AboveRange   int
	Gap          int
	DroppedEdges int // cycles that discarded at least one edge
}

// Clone returns a deep copy.
func (c Counts) Clone() Counts {
	c.Bands = append([]int(nil), c.Bands...)
	return c
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
