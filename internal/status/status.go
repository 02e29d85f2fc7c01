// Package status provides a thread-safe status tracker for the rc-ledctrl daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/capture"
	"github.com/sweeney/rc-ledctrl/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	BaudRate    int
	Mapping     string
	OutOfRange  string
	ClockRead   string
	Sink        string // "gpio" or a serial port name
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Pulse is the most recent measurement.
type Pulse struct {
	At     time.Time
	Width  int16
	Band   string
	Label  string
	Duty   uint8
	Linear bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode          logic.Mode
	Duty          uint8
	Last          *Pulse
	BandNames     []string
	Counts        logic.Counts
	Capture       capture.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTDropped   uint64 // reports the publisher queue had no room for
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. It implements
// control.Observer; Observe only takes the lock long enough to copy the
// report.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	tally *logic.Tally
}

// NewTracker creates a Tracker for the given mode, band table and initial
// output duty.
func NewTracker(startTime time.Time, mode logic.Mode, bandNames []string, duty uint8, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      mode,
			Duty:      duty,
			BandNames: append([]string(nil), bandNames...),
			StartTime: startTime,
			Config:    cfg,
		},
		tally: logic.NewTally(len(bandNames), startTime),
	}
}

// Observe records a completed report.
func (t *Tracker) Observe(r logic.Report) {
	t.mu.Lock()
	t.tally.Record(r)
	t.snap.Duty = r.Result.Duty
	t.snap.Last = &Pulse{
		At:     r.Timestamp,
		Width:  r.Result.Width,
		Band:   r.Result.Name,
		Label:  r.Result.Label(),
		Duty:   r.Result.Duty,
		Linear: r.Result.Linear,
	}
	t.mu.Unlock()
}

// SetCaptureStats stores the edge handler counters.
func (t *Tracker) SetCaptureStats(st capture.Stats) {
	t.mu.Lock()
	t.snap.Capture = st
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTDropped stores the number of reports dropped before publishing.
func (t *Tracker) SetMQTTDropped(n uint64) {
	t.mu.Lock()
	t.snap.MQTTDropped = n
	t.mu.Unlock()
}

// CheckHeartbeat returns heartbeat data once per interval, or nil.
func (t *Tracker) CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tally.CheckHeartbeat(now, interval)
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts = t.tally.Counts()
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
