package logic

import "time"

// Tally counts reports and paces heartbeats.
// Not safe for concurrent use; callers must synchronize.
type Tally struct {
	counts        Counts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewTally creates a Tally for a table of n bands.
// The startTime is used for calculating uptime in heartbeat events.
func NewTally(n int, startTime time.Time) *Tally {
	return &Tally{
		counts:        Counts{Bands: make([]int, n)},
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Record counts one report.
func (t *Tally) Record(r Report) {
	t.counts.Pulses++
	switch b := r.Result.Band; {
	case b == BandBelowRange:
		t.counts.BelowRange++
	case b == BandAboveRange:
		t.counts.AboveRange++
	case b == BandGap:
		t.counts.Gap++
	case int(b) < len(t.counts.Bands):
		t.counts.Bands[b]++
	}
	if r.DroppedEdges {
		t.counts.DroppedEdges++
	}
}

// Counts returns a copy of the current counts.
func (t *Tally) Counts() Counts {
	return t.counts.Clone()
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (t *Tally) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(t.lastHeartbeat) < interval {
		return nil
	}

	t.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(t.startTime),
		Counts:    t.counts.Clone(),
	}
}
