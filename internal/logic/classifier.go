package logic

// MapperConfig holds the calibration the mapper needs.
type MapperConfig struct {
	Mapping    Mapping
	OutOfRange OutOfRange
	// Bands must be sorted by Center.
	Bands     []BandSpec
	SupplyMV  int
	DefaultMV int
	// LinearMin and LinearMax bound the input span for MapLinear.
	LinearMin int
	LinearMax int
}

// Mapper classifies pulse widths and owns the authoritative output duty.
// Not safe for concurrent use; only the main loop calls it.
type Mapper struct {
	cfg         MapperConfig
	bandDuty    []uint8
	defaultDuty uint8
	duty        uint8
}

// NewMapper precomputes each band's duty. The output starts at the default
// duty.
func NewMapper(cfg MapperConfig) *Mapper {
	m := &Mapper{
		cfg:         cfg,
		bandDuty:    make([]uint8, len(cfg.Bands)),
		defaultDuty: DutyFromMillivolts(cfg.DefaultMV, cfg.SupplyMV),
	}
	for i, b := range cfg.Bands {
		m.bandDuty[i] = DutyFromMillivolts(b.TargetMV, cfg.SupplyMV)
	}
	m.duty = m.defaultDuty
	return m
}

// Classify returns the band for a width without touching the output. Windows
// are tried in table order, so the first match wins if they overlap. A width
// outside every window is below-range under the lowest center, above-range
// over the highest, and a gap anywhere between two centers.
func (m *Mapper) Classify(width int16) Band {
	bands := m.cfg.Bands
	for i, b := range bands {
		if b.Contains(width) {
			return Band(i)
		}
	}
	if len(bands) == 0 {
		return BandBelowRange
	}

	w := int(width)
	if w < bands[0].Center {
		return BandBelowRange
	}
	last := bands[len(bands)-1]
	if w > last.Center {
		return BandAboveRange
	}
	return BandGap
}

// Apply classifies the width and updates the output duty according to the
// active mapping.
func (m *Mapper) Apply(width int16) Result {
	band := m.Classify(width)
	r := Result{Width: width, Band: band, Name: m.Name(band), Symbol: m.Symbol(band)}

	switch {
	case m.cfg.Mapping == MapLinear:
		m.duty = LinearDuty(width, m.cfg.LinearMin, m.cfg.LinearMax)
		r.Updated = true
		r.Linear = true
	case band.InRange():
		m.duty = m.bandDuty[band]
		r.Updated = true
	case m.cfg.OutOfRange == DefaultOutput:
		m.duty = m.defaultDuty
		r.Updated = true
	}

	r.Duty = m.duty
	return r
}

// Duty returns the current authoritative output duty.
func (m *Mapper) Duty() uint8 {
	return m.duty
}

// BandDuty returns the duty assigned to a configured band.
func (m *Mapper) BandDuty(b Band) (uint8, bool) {
	if !b.InRange() || int(b) >= len(m.bandDuty) {
		return 0, false
	}
	return m.bandDuty[b], true
}

// Symbol returns the diagnostic symbol for a band. Bands without a
// configured symbol use their index digit.
func (m *Mapper) Symbol(b Band) byte {
	if !b.InRange() || int(b) >= len(m.cfg.Bands) {
		return OutOfRangeSymbol
	}
	if s := m.cfg.Bands[b].Symbol; s != 0 {
		return s
	}
	return '0' + byte(b%10)
}

// Name returns the configured band name, or "below-range", "above-range" or
// "gap" for the sentinels.
func (m *Mapper) Name(b Band) string {
	switch {
	case b == BandBelowRange:
		return "below-range"
	case b == BandAboveRange:
		return "above-range"
	case b == BandGap:
		return "gap"
	case int(b) < len(m.cfg.Bands):
		return m.cfg.Bands[b].Name
	}
	return "unknown"
}

// Bands returns the number of configured bands.
func (m *Mapper) Bands() int {
	return len(m.cfg.Bands)
}
