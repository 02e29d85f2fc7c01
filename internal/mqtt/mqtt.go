// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/logic"
)

// Topic is the MQTT topic for pulse measurements.
const Topic = "rcin/ledctrl/measurements"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "rcin/ledctrl/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a measurement report to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(r logic.Report) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Pulse PulsePayload `json:"pulse"`
}

// PulsePayload contains one measurement.
type PulsePayload struct {
	Timestamp string `json:"timestamp"`
	Mode      string `json:"mode"`
	Width     int    `json:"width"`
	Band      string `json:"band"`
	Label     string `json:"label"`
	Duty      int    `json:"duty"`
	Dropped   bool   `json:"dropped_edges,omitempty"`
}

// FormatPayload creates the JSON payload for a measurement report.
func FormatPayload(r logic.Report) ([]byte, error) {
	payload := Payload{
		Pulse: PulsePayload{
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
			Mode:      r.Mode.String(),
			Width:     int(r.Result.Width),
			Band:      r.Result.Name,
			Label:     r.Result.Label(),
			Duty:      int(r.Result.Duty),
			Dropped:   r.DroppedEdges,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Discard is a Publisher that drops everything. It is used when no broker is
// configured.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(logic.Report) error { return nil }

// PublishSystem does nothing.
func (Discard) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }
