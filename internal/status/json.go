package status

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/encoder-button/encoderbutton"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event           string         `json:"event,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Position        int32          `json:"position"`
	PressedPosition int32          `json:"pressed_position"`
	Pressed         bool           `json:"pressed"`
	Enabled         bool           `json:"enabled"`
	LastEvent       *EventJSON     `json:"last_event,omitempty"`
	UptimeSeconds   int64          `json:"uptime_seconds"`
	StartTime       string         `json:"start_time"`
	Timestamp       string         `json:"timestamp"`
	MQTT            MQTTStatus     `json:"mqtt"`
	Counts          map[string]int `json:"event_counts"`
	Network         *NetworkJSON   `json:"network,omitempty"`
	Config          ConfigJSON     `json:"config"`
}

// EventJSON is the JSON representation of a recorded event.
type EventJSON struct {
	Timestamp       string `json:"timestamp"`
	Event           string `json:"event"`
	Position        int32  `json:"position"`
	PressedPosition int32  `json:"pressed_position"`
	Increment       int32  `json:"increment"`
	ClickCount      int    `json:"click_count"`
	LongPressCount  int    `json:"long_press_count"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip            string `json:"chip"`
	PinA            int    `json:"pin_a"`
	PinB            int    `json:"pin_b"`
	PinSwitch       int    `json:"pin_switch"`
	PollMs          int64  `json:"poll_ms"`
	DebounceMs      int64  `json:"debounce_ms"`
	MultiClickMs    int64  `json:"multi_click_ms"`
	LongClickMs     int64  `json:"long_click_ms"`
	RateLimitMs     int64  `json:"rate_limit_ms"`
	IdleMs          int64  `json:"idle_ms"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	QuadPrecision   bool   `json:"quad_precision"`
	LongPressRepeat bool   `json:"long_press_repeat"`
	UserID          uint   `json:"user_id"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
}

// EventKey is the JSON key used for an event kind in counts.
func EventKey(e encoderbutton.Event) string {
	return strings.ToLower(e.String())
}

// NewEventJSON converts a recorded event for output.
func NewEventJSON(rec EventRecord) EventJSON {
	return EventJSON{
		Timestamp:       rec.Time.UTC().Format(time.RFC3339Nano),
		Event:           rec.Event.String(),
		Position:        rec.Position,
		PressedPosition: rec.PressedPosition,
		Increment:       rec.Increment,
		ClickCount:      rec.ClickCount,
		LongPressCount:  rec.LongPressCount,
	}
}

func buildInner(snap Snapshot) StatusInner {
	counts := make(map[string]int, len(encoderbutton.Events()))
	for _, e := range encoderbutton.Events() {
		counts[EventKey(e)] = snap.Counts[e]
	}

	inner := StatusInner{
		Position:        snap.Input.Position,
		PressedPosition: snap.Input.PressedPosition,
		Pressed:         snap.Input.Pressed,
		Enabled:         snap.Input.Enabled,
		UptimeSeconds:   int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:       snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:       snap.Now.UTC().Format(time.RFC3339),
		MQTT:            MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:          counts,
		Config: ConfigJSON{
			Chip:            snap.Config.Chip,
			PinA:            snap.Config.PinA,
			PinB:            snap.Config.PinB,
			PinSwitch:       snap.Config.PinSwitch,
			PollMs:          snap.Config.PollMs,
			DebounceMs:      snap.Config.DebounceMs,
			MultiClickMs:    snap.Config.MultiClickMs,
			LongClickMs:     snap.Config.LongClickMs,
			RateLimitMs:     snap.Config.RateLimitMs,
			IdleMs:          snap.Config.IdleMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			QuadPrecision:   snap.Config.QuadPrecision,
			LongPressRepeat: snap.Config.LongPressRepeat,
			UserID:          snap.Config.UserID,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
		},
	}
	if snap.LastEvent != nil {
		last := NewEventJSON(*snap.LastEvent)
		inner.LastEvent = &last
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
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
