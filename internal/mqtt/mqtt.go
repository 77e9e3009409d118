// Package mqtt publishes reaction results and host lifecycle events.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gb-reaction/internal/host"
)

// Topic is the MQTT topic for round results.
const Topic = "games/reaction/results"

// TopicSystem is the MQTT topic for host lifecycle events.
const TopicSystem = "games/reaction/system"

// Publisher publishes results to MQTT.
type Publisher interface {
	// PublishResult sends a completed round to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishResult(res host.Result) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT, ...).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // shutdown only
	RawPayload []byte // pre-formatted JSON; FormatSystemPayload returns it as is
	Retained   bool
}

// Payload is the result message.
type Payload struct {
	Reaction ReactionPayload `json:"reaction"`
}

// ReactionPayload holds one round.
type ReactionPayload struct {
	RoundID     string  `json:"round_id"`
	Timestamp   string  `json:"timestamp"`
	Instruction int     `json:"instruction"`
	Button      string  `json:"button"`
	Ticks       uint32  `json:"ticks"`
	Seconds     float64 `json:"seconds"`
}

// FormatPayload creates the JSON payload for a round.
func FormatPayload(res host.Result) ([]byte, error) {
	payload := Payload{
		Reaction: ReactionPayload{
			RoundID:     res.ID.String(),
			Timestamp:   res.Timestamp.UTC().Format(time.RFC3339),
			Instruction: res.Instruction,
			Button:      res.Button.String(),
			Ticks:       res.Ticks,
			Seconds:     res.Seconds(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the message for simple events (LWT, RECONNECTED) that
// don't carry a status snapshot.
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
