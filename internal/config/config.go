// Package config holds the calibration built once at startup and passed to
// the components that need it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/counter"
	"github.com/sweeney/rc-ledctrl/internal/logic"
)

// Error is a configuration validation error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrNoBands        = Error("band table is empty")
	ErrBandOrder      = Error("band centers must be strictly ascending")
	ErrBandTolerance  = Error("band tolerances must be at least 1")
	ErrBandSymbol     = Error("band symbol must be a single character")
	ErrBaudRate       = Error("baud rate must be positive")
	ErrTickPeriod     = Error("tick period must be positive")
	ErrSupply         = Error("supply voltage must be positive")
	ErrLinearSpan     = Error("linear span must have min below max")
	ErrWidthRange     = Error("band window exceeds the signed 16-bit width range")
	ErrBitTooShort    = Error("baud rate too high for the tick period")
	ErrMinPulseGap    = Error("minimum pulse gap must not be negative")
	ErrUnknownSetting = Error("unknown setting")
)

// Band is one classification window.
type Band struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Center   int    `json:"center"`
	Lower    int    `json:"lower"`
	Upper    int    `json:"upper"`
	TargetMV int    `json:"target_mv"`
}

// Config is the calibration of one device. Widths and spans are in counter
// ticks.
type Config struct {
	BaudRate   int    `json:"baud_rate"`
	TickNS     int    `json:"tick_ns"`
	SupplyMV   int    `json:"supply_mv"`
	DefaultMV  int    `json:"default_mv"`
	Mapping    string `json:"mapping"`      // "discrete" or "linear"
	OutOfRange string `json:"out_of_range"` // "hold" or "default"
	LinearMin  int    `json:"linear_min"`
	LinearMax  int    `json:"linear_max"`
	ClockRead  string `json:"clock_read"` // "windowed" or "double-high"
	// MinPulseGapUS is the shortest expected time between pulses. Lines that
	// take longer than this to transmit cost measurements.
	MinPulseGapUS int    `json:"min_pulse_gap_us"`
	Bands         []Band `json:"bands"`
}

// Default returns the reference calibration: three bands at 1100, 1520 and
// 1940 µs with the outer windows widened on their outside.
func Default() *Config {
	c := &Config{}
	applyDefaults(c, present{})
	return c
}

// present records which settings whose zero value is meaningful were
// written in the file, so that an explicit 0 is not mistaken for a missing
// value.
type present struct {
	DefaultMV     *int `json:"default_mv"`
	LinearMin     *int `json:"linear_min"`
	LinearMax     *int `json:"linear_max"`
	MinPulseGapUS *int `json:"min_pulse_gap_us"`
	Bands         []struct {
		Lower *int `json:"lower"`
		Upper *int `json:"upper"`
	} `json:"bands"`
}

func (p present) bandLower(i int) bool {
	return i < len(p.Bands) && p.Bands[i].Lower != nil
}

func (p present) bandUpper(i int) bool {
	return i < len(p.Bands) && p.Bands[i].Upper != nil
}

func defaultBands() []Band {
	return []Band{
		{Name: "low", Symbol: "0", Center: 1100, Lower: 210, Upper: 105, TargetMV: 500},
		{Name: "mid", Symbol: "1", Center: 1520, Lower: 105, Upper: 105, TargetMV: 1250},
		{Name: "high", Symbol: "2", Center: 1940, Lower: 105, Upper: 210, TargetMV: 2500},
	}
}

// Load reads a JSON configuration file, applies defaults to missing values
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	var set present
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c, set)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyDefaults fills in missing configuration values. Zero stands for
// missing except where set says the value was written explicitly.
func applyDefaults(c *Config, set present) {
	if c.BaudRate == 0 {
		c.BaudRate = 19200
	}
	if c.TickNS == 0 {
		c.TickNS = 1000 // 1 µs
	}
	if c.SupplyMV == 0 {
		c.SupplyMV = 3300
	}
	if set.DefaultMV == nil {
		c.DefaultMV = c.SupplyMV / 2
	}
	if c.Mapping == "" {
		c.Mapping = logic.MapDiscrete.String()
	}
	if c.OutOfRange == "" {
		c.OutOfRange = logic.HoldOutput.String()
	}
	if c.ClockRead == "" {
		c.ClockRead = counter.ReadWindowed.String()
	}
	if set.MinPulseGapUS == nil {
		c.MinPulseGapUS = 12000
	}
	if len(c.Bands) == 0 {
		c.Bands = defaultBands()
		set.Bands = nil
	}

	for i, b := range c.Bands {
		if b.Lower == 0 && !set.bandLower(i) {
			b.Lower = 105
		}
		if b.Upper == 0 && !set.bandUpper(i) {
			b.Upper = 105
		}
		if b.Symbol == "" {
			b.Symbol = string(rune('0' + i%10))
		}
		if b.Name == "" {
			b.Name = fmt.Sprintf("band%d", i)
		}
		c.Bands[i] = b
	}

	// The linear span defaults to the outermost band centers.
	if set.LinearMin == nil {
		c.LinearMin = c.Bands[0].Center
	}
	if set.LinearMax == nil {
		c.LinearMax = c.Bands[len(c.Bands)-1].Center
	}
}

// Validate rejects a configuration the decoder cannot run with.
func (c *Config) Validate() error {
	if c.BaudRate <= 0 {
		return ErrBaudRate
	}
	if c.TickNS <= 0 {
		return ErrTickPeriod
	}
	if c.SupplyMV <= 0 {
		return ErrSupply
	}
	if c.MinPulseGapUS < 0 {
		return ErrMinPulseGap
	}
	if time.Second/time.Duration(c.BaudRate) < c.TickPeriod() {
		return ErrBitTooShort
	}
	if _, err := logic.ParseMapping(c.Mapping); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownSetting, err)
	}
	if _, err := logic.ParseOutOfRange(c.OutOfRange); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownSetting, err)
	}
	if _, err := counter.ParseReadPolicy(c.ClockRead); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownSetting, err)
	}
	if len(c.Bands) == 0 {
		return ErrNoBands
	}
	for i, b := range c.Bands {
		if b.Lower < 1 || b.Upper < 1 {
			return fmt.Errorf("band %q: %w", b.Name, ErrBandTolerance)
		}
		if len(b.Symbol) != 1 {
			return fmt.Errorf("band %q: %w", b.Name, ErrBandSymbol)
		}
		if b.Center-b.Lower < -32768 || b.Center+b.Upper > 32767 {
			return fmt.Errorf("band %q: %w", b.Name, ErrWidthRange)
		}
		if i > 0 && b.Center <= c.Bands[i-1].Center {
			return fmt.Errorf("band %q: %w", b.Name, ErrBandOrder)
		}
	}
	if c.LinearMin >= c.LinearMax {
		return ErrLinearSpan
	}
	return nil
}

// TickPeriod returns the duration of one counter tick.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.TickNS) * time.Nanosecond
}

// MinPulseGap returns the shortest expected time between pulses.
func (c *Config) MinPulseGap() time.Duration {
	return time.Duration(c.MinPulseGapUS) * time.Microsecond
}

// ReadPolicy returns the parsed extended-clock read policy.
func (c *Config) ReadPolicy() (counter.ReadPolicy, error) {
	return counter.ParseReadPolicy(c.ClockRead)
}

// MapperConfig converts the calibration into the mapper's form.
func (c *Config) MapperConfig() (logic.MapperConfig, error) {
	mapping, err := logic.ParseMapping(c.Mapping)
	if err != nil {
		return logic.MapperConfig{}, err
	}
	oor, err := logic.ParseOutOfRange(c.OutOfRange)
	if err != nil {
		return logic.MapperConfig{}, err
	}

	bands := make([]logic.BandSpec, len(c.Bands))
	for i, b := range c.Bands {
		var sym byte
		if b.Symbol != "" {
			sym = b.Symbol[0]
		}
		bands[i] = logic.BandSpec{
			Name:     b.Name,
			Symbol:   sym,
			Center:   b.Center,
			Lower:    b.Lower,
			Upper:    b.Upper,
			TargetMV: b.TargetMV,
		}
	}

	return logic.MapperConfig{
		Mapping:    mapping,
		OutOfRange: oor,
		Bands:      bands,
		SupplyMV:   c.SupplyMV,
		DefaultMV:  c.DefaultMV,
		LinearMin:  c.LinearMin,
		LinearMax:  c.LinearMax,
	}, nil
}
