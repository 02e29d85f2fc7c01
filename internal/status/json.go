package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Mode          string      `json:"mode"`
	ModeDigit     int         `json:"mode_digit"`
	Duty          int         `json:"duty"`
	Last          *PulseJSON  `json:"last,omitempty"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Counts        CountsJSON  `json:"pulse_counts"`
	Capture       CaptureJSON `json:"capture"`
	Config        ConfigJSON  `json:"config"`
}

// PulseJSON is the JSON representation of the last measurement.
type PulseJSON struct {
	Timestamp string `json:"timestamp"`
	Width     int    `json:"width"`
	Band      string `json:"band"`
	Label     string `json:"label"`
	Duty      int    `json:"duty"`
}

// PulseStatusJSON is the compact document for clients polling the decoder.
// Last is null until the first pulse.
type PulseStatusJSON struct {
	Mode   string     `json:"mode"`
	Duty   int        `json:"duty"`
	Pulses int        `json:"pulses"`
	Last   *PulseJSON `json:"last"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Dropped   uint64 `json:"dropped"`
}

// CountsJSON is the JSON representation of pulse counts.
type CountsJSON struct {
	Pulses       int            `json:"pulses"`
	Bands        map[string]int `json:"bands"`
	BelowRange   int            `json:"below_range"`
	AboveRange   int            `json:"above_range"`
	Gap          int            `json:"gap"`
	DroppedEdges int            `json:"dropped_edges"`
}

// CaptureJSON is the JSON representation of the edge handler counters.
type CaptureJSON struct {
	Edges     uint32 `json:"edges"`
	Resyncs   uint32 `json:"resyncs"`
	Unarmed   uint32 `json:"unarmed"`
	ReadFails uint32 `json:"read_fails"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	BaudRate    int    `json:"baud_rate"`
	Mapping     string `json:"mapping"`
	OutOfRange  string `json:"out_of_range"`
	ClockRead   string `json:"clock_read"`
	Sink        string `json:"sink"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	bands := make(map[string]int, len(snap.BandNames))
	for i, name := range snap.BandNames {
		if i < len(snap.Counts.Bands) {
			bands[name] = snap.Counts.Bands[i]
		}
	}

	inner := StatusInner{
		Mode:          snap.Mode.String(),
		ModeDigit:     int(snap.Mode.Digit() - '0'),
		Duty:          int(snap.Duty),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker, Dropped: snap.MQTTDropped},
		Counts: CountsJSON{
			Pulses:       snap.Counts.Pulses,
			Bands:        bands,
			BelowRange:   snap.Counts.BelowRange,
			AboveRange:   snap.Counts.AboveRange,
			Gap:          snap.Counts.Gap,
			DroppedEdges: snap.Counts.DroppedEdges,
		},
		Capture: CaptureJSON{
			Edges:     snap.Capture.Edges,
			Resyncs:   snap.Capture.Resyncs,
			Unarmed:   snap.Capture.Unarmed,
			ReadFails: snap.Capture.ReadFails,
		},
		Config: ConfigJSON{
			BaudRate:    snap.Config.BaudRate,
			Mapping:     snap.Config.Mapping,
			OutOfRange:  snap.Config.OutOfRange,
			ClockRead:   snap.Config.ClockRead,
			Sink:        snap.Config.Sink,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	inner.Last = pulseJSON(snap.Last)
	return inner
}

func pulseJSON(p *Pulse) *PulseJSON {
	if p == nil {
		return nil
	}
	return &PulseJSON{
		Timestamp: p.At.UTC().Format(time.RFC3339Nano),
		Width:     int(p.Width),
		Band:      p.Band,
		Label:     p.Label,
		Duty:      int(p.Duty),
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatPulseJSON returns the compact pulse document.
func FormatPulseJSON(snap Snapshot) []byte {
	data, _ := json.Marshal(PulseStatusJSON{
		Mode:   snap.Mode.String(),
		Duty:   int(snap.Duty),
		Pulses: snap.Counts.Pulses,
		Last:   pulseJSON(snap.Last),
	})
	return data
}
