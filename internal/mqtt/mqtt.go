// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/encoder-button/encoderbutton"
)

// Topic is the MQTT topic for classified input events.
const Topic = "input/encoder-button/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "input/encoder-button/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an input event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is one classified input event with the state handlers could read
// when it fired.
type Event struct {
	Timestamp       time.Time
	Type            encoderbutton.Event
	Position        int32
	PressedPosition int32
	Increment       int32
	ClickCount      int
	LongPressCount  int
	UserID          uint
	UserState       uint
}

// NewEvent captures the observable state of eb for event e.
func NewEvent(e encoderbutton.Event, eb *encoderbutton.EncoderButton, ts time.Time) Event {
	return Event{
		Timestamp:       ts,
		Type:            e,
		Position:        eb.Position(),
		PressedPosition: eb.PressedPosition(),
		Increment:       eb.Increment(),
		ClickCount:      eb.ClickCount(),
		LongPressCount:  eb.LongPressCount(),
		UserID:          eb.UserID(),
		UserState:       eb.UserState(),
	}
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Encoder EncoderPayload `json:"encoder"`
}

// EncoderPayload contains the input event details.
type EncoderPayload struct {
	Timestamp       string `json:"timestamp"`
	Event           string `json:"event"`
	UserID          uint   `json:"user_id"`
	Position        int32  `json:"position"`
	PressedPosition int32  `json:"pressed_position"`
	Increment       int32  `json:"increment"`
	ClickCount      int    `json:"click_count"`
	LongPressCount  int    `json:"long_press_count"`
	UserState       uint   `json:"user_state"`
}

// FormatPayload creates the JSON payload for an input event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Encoder: EncoderPayload{
			Timestamp:       event.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:           event.Type.String(),
			UserID:          event.UserID,
			Position:        event.Position,
			PressedPosition: event.PressedPosition,
			Increment:       event.Increment,
			ClickCount:      event.ClickCount,
			LongPressCount:  event.LongPressCount,
			UserState:       event.UserState,
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

// WillEvent is the last-will message the broker publishes if the connection
// drops without a clean disconnect.
func WillEvent(ts time.Time) SystemEvent {
	return SystemEvent{
		Timestamp: ts,
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
		Retained:  true,
	}
}
