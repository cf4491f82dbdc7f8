// Package encoderbutton turns a debounced momentary switch and a rotary
// encoder tick count into high-level button and rotation events.
// This package has NO hardware dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Hardware and time are injected through the Debouncer, TickCounter and Clock
// interfaces, and Update is driven from the host's poll loop.
//
// Tick counters fed by software interrupts (or by a slow poller) may lose
// physical steps before the count ever reaches this package. That loss is not
// detected here. Do not combine SetRateLimit with such a tick source.
package encoderbutton

import "time"

// Event identifies one kind of classified event. Each kind has exactly one
// handler slot.
type Event int

const (
	EventChanged Event = iota
	EventPressed
	EventReleased
	EventClick
	EventDoubleClick
	EventTripleClick
	EventLongClick
	EventLongPress
	EventEncoder
	EventEncoderPressed
	EventEncoderReleased
	EventIdle

	numEvents
)

var eventNames = [numEvents]string{
	EventChanged:         "CHANGED",
	EventPressed:         "PRESSED",
	EventReleased:        "RELEASED",
	EventClick:           "CLICK",
	EventDoubleClick:     "DOUBLE_CLICK",
	EventTripleClick:     "TRIPLE_CLICK",
	EventLongClick:       "LONG_CLICK",
	EventLongPress:       "LONG_PRESS",
	EventEncoder:         "ENCODER",
	EventEncoderPressed:  "ENCODER_PRESSED",
	EventEncoderReleased: "ENCODER_RELEASED",
	EventIdle:            "IDLE",
}

func (e Event) String() string {
	if e < 0 || e >= numEvents {
		return "UNKNOWN"
	}
	return eventNames[e]
}

// Events returns every event kind in declaration order.
func Events() []Event {
	all := make([]Event, numEvents)
	for i := range all {
		all[i] = Event(i)
	}
	return all
}

// Handler is called synchronously from Update with the instance that fired.
// It must not call Update on the same instance.
type Handler func(eb *EncoderButton)

// Debouncer is an already-debounced digital input. The electrical convention
// is active-low: Read returns true (high) while the switch is released.
type Debouncer interface {
	// Update samples the input and reports whether the debounced level
	// changed since the previous call.
	Update() bool

	// Read returns the debounced level.
	Read() bool

	// Fell and Rose describe the edge reported by the last Update.
	Fell() bool
	Rose() bool

	// CurrentDuration is how long the current level has been held.
	CurrentDuration() time.Duration

	// PreviousDuration is how long the level before the current one was held.
	PreviousDuration() time.Duration

	// SetInterval sets the settle interval used to reject bounce.
	SetInterval(d time.Duration)
}

// TickCounter is a signed running tally of raw encoder transitions.
type TickCounter interface {
	Read() int32
	Write(ticks int32)
	ReadAndReset() int32
}

// Clock is a monotonic millisecond counter. It may wrap; all comparisons
// made against it are difference based.
type Clock interface {
	Millis() uint32
}

// Defaults applied by the constructors.
const (
	DefaultMultiClickInterval = 250 * time.Millisecond
	DefaultLongClickDuration  = 750 * time.Millisecond
	DefaultIdleTimeout        = 10 * time.Second
)
