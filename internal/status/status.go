// Package status provides a thread-safe status tracker for the encoder-button
// daemon. It is written by the poll loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/encoder-button/encoderbutton"
)

// RecentLimit is how many events the tracker keeps for display.
const RecentLimit = 20

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Chip      string
	PinA      int
	PinB      int
	PinSwitch int // -1 when the encoder has no switch

	PollMs       int64
	DebounceMs   int64
	MultiClickMs int64
	LongClickMs  int64
	RateLimitMs  int64
	IdleMs       int64
	HeartbeatMs  int64

	QuadPrecision   bool
	LongPressRepeat bool
	UserID          uint

	Broker   string
	HTTPAddr string
}

// InputState is the classifier state sampled after each poll.
type InputState struct {
	Position        int32
	PressedPosition int32
	Pressed         bool
	Enabled         bool
}

// EventRecord is one classified event as seen by the daemon.
type EventRecord struct {
	Time            time.Time
	Event           encoderbutton.Event
	Position        int32
	PressedPosition int32
	Increment       int32
	ClickCount      int
	LongPressCount  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Input         InputState
	Counts        map[encoderbutton.Event]int
	LastEvent     *EventRecord
	Recent        []EventRecord // oldest first
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Total returns the number of events recorded since start.
func (s Snapshot) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	counts map[encoderbutton.Event]int
	recent []EventRecord
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Input:     InputState{Enabled: true},
		},
		counts: make(map[encoderbutton.Event]int),
	}
}

// Update sets the sampled classifier state. Called from runLoop on every tick.
func (t *Tracker) Update(in InputState) {
	t.mu.Lock()
	t.snap.Input = in
	t.mu.Unlock()
}

// Record counts an event and appends it to the recent list.
func (t *Tracker) Record(rec EventRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[rec.Event]++
	if len(t.recent) == RecentLimit {
		copy(t.recent, t.recent[1:])
		t.recent = t.recent[:RecentLimit-1]
	}
	t.recent = append(t.recent, rec)
	last := rec
	t.snap.LastEvent = &last
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts = make(map[encoderbutton.Event]int, len(t.counts))
	for e, n := range t.counts {
		s.Counts[e] = n
	}
	s.Recent = append([]EventRecord(nil), t.recent...)
	if t.snap.LastEvent != nil {
		last := *t.snap.LastEvent
		s.LastEvent = &last
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
