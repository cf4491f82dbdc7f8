package encoderbutton

import (
	"math"
	"time"
)

// EncoderButton classifies one encoder/switch pair. All state is owned by the
// instance and mutated only by Update and the setters; it is not safe for
// concurrent use.
type EncoderButton struct {
	button  Debouncer
	counter TickCounter
	clock   Clock

	hasButton  bool
	hasEncoder bool
	enabled    bool

	handlers [numEvents]Handler

	// Switch state
	released         bool // debounced level, true = high
	releasedAtPress  bool // level before the current press was released
	clickPending     bool // released at least once since the last finalized click
	clickCounter     int  // running count of the current gesture
	clickCount       int  // finalized count, read by click handlers
	longPressCounter int
	longPressRepeat  bool

	// Encoder state
	divisor         int32
	encoderPosition int32 // divided position at the last encoder pass
	position        int32
	pressedPosition int32
	increment       int32
	encodingPressed bool // rotated while held, until the next release

	// Timing, all in wrapping milliseconds
	multiClickInterval uint32
	longClickDuration  uint32
	idleTimeout        uint32
	rateLimit          uint32
	lastEventMs        uint32
	lastEncoderPollMs  uint32
	idleFlagged        bool

	userID    uint
	userState uint
}

// New creates a classifier for an encoder with a push switch. A nil counter or
// nil button means that part is absent. With neither present the instance is
// valid but never fires.
//
// Pass untyped nil for an absent part; a typed nil pointer counts as present.
func New(counter TickCounter, button Debouncer, clock Clock) *EncoderButton {
	eb := &EncoderButton{
		button:             button,
		counter:            counter,
		clock:              clock,
		hasButton:          button != nil,
		hasEncoder:         counter != nil,
		enabled:            true,
		released:           true,
		divisor:            4,
		multiClickInterval: millis(DefaultMultiClickInterval),
		longClickDuration:  millis(DefaultLongClickDuration),
		idleTimeout:        millis(DefaultIdleTimeout),
		lastEventMs:        clock.Millis(),
	}
	return eb
}

// NewEncoder creates a classifier for an encoder without a switch.
func NewEncoder(counter TickCounter, clock Clock) *EncoderButton {
	return New(counter, nil, clock)
}

// NewButton creates a classifier for a standalone switch.
func NewButton(button Debouncer, clock Clock) *EncoderButton {
	return New(nil, button, clock)
}

// Update advances the state machine and fires any handlers that are due.
// Call it once per iteration of the host loop. It does nothing while disabled.
//
// The passes run in a fixed order: switch edge, encoder, long press, click
// finalization, idle.
func (eb *EncoderButton) Update() {
	if !eb.enabled || (!eb.hasButton && !eb.hasEncoder) {
		return
	}
	if eb.hasButton {
		eb.updateButton()
	}
	if eb.hasEncoder {
		eb.updateEncoder()
	}
	if eb.hasButton {
		eb.updateLongPress()
		eb.updateClick()
	}
	eb.updateIdle()
}

func (eb *EncoderButton) updateButton() {
	if !eb.button.Update() {
		return
	}
	eb.touch()
	eb.fire(EventChanged)
	eb.released = eb.button.Read()

	switch {
	case eb.button.Fell():
		eb.releasedAtPress = true
		eb.fire(EventPressed)

	case eb.button.Rose():
		if eb.encodingPressed {
			// Rotation during the press replaces release and click
			// accounting for this press cycle. A gesture still waiting on
			// the multi-click window stays pending and finalizes with a
			// click count of 0.
			eb.encodingPressed = false
			eb.clickCount = 0
			eb.clickCounter = 0
			eb.fire(EventEncoderReleased)
		} else {
			if eb.releasedAtPress {
				eb.clickPending = true
				eb.clickCounter++
			}
			eb.fire(EventReleased)
		}
		eb.releasedAtPress = false
		eb.longPressCounter = 0
	}
}

func (eb *EncoderButton) updateEncoder() {
	now := eb.clock.Millis()
	if now-eb.lastEncoderPollMs < eb.rateLimit {
		return
	}
	eb.lastEncoderPollMs = now

	pos := floorDiv(eb.counter.Read(), eb.divisor)
	if pos == eb.encoderPosition {
		return
	}
	eb.increment = pos - eb.encoderPosition
	eb.encoderPosition = pos
	eb.touch()

	if eb.released {
		eb.position += eb.increment
		eb.fire(EventEncoder)
		return
	}
	eb.encodingPressed = true
	eb.pressedPosition += eb.increment
	eb.fire(EventEncoderPressed)
}

func (eb *EncoderButton) updateLongPress() {
	if eb.encodingPressed || eb.button.Read() {
		return
	}
	held := uint64(millis(eb.button.CurrentDuration()))
	if held <= uint64(eb.longClickDuration)*uint64(eb.longPressCounter+1) {
		return
	}
	// A silent crossing (repeat off) restarts the idle timer but does not
	// end an idle period; only a fired long press does.
	eb.lastEventMs = eb.clock.Millis()
	if eb.longPressCounter == 0 || eb.longPressRepeat {
		eb.idleFlagged = false
		eb.fire(EventLongPress)
	}
	eb.longPressCounter++
}

func (eb *EncoderButton) updateClick() {
	if !eb.clickPending || !eb.released {
		return
	}
	if millis(eb.button.CurrentDuration()) <= eb.multiClickInterval {
		return
	}
	eb.clickPending = false

	if millis(eb.button.PreviousDuration()) > eb.longClickDuration {
		eb.clickCounter = 0
		eb.clickCount = 1
		eb.longPressCounter = 0
		eb.fire(EventLongClick)
		return
	}

	eb.clickCount = eb.clickCounter
	switch {
	case eb.clickCounter == 3 && eb.handlers[EventTripleClick] != nil:
		eb.fire(EventTripleClick)
	case eb.clickCounter == 2 && eb.handlers[EventDoubleClick] != nil:
		eb.fire(EventDoubleClick)
	default:
		eb.fire(EventClick)
	}
	eb.clickCounter = 0
}

func (eb *EncoderButton) updateIdle() {
	if eb.idleFlagged || eb.handlers[EventIdle] == nil {
		return
	}
	if eb.clock.Millis()-eb.lastEventMs > eb.idleTimeout {
		eb.idleFlagged = true
		eb.fire(EventIdle)
	}
}

// touch records activity and ends any idle period.
func (eb *EncoderButton) touch() {
	eb.lastEventMs = eb.clock.Millis()
	eb.idleFlagged = false
}

func (eb *EncoderButton) fire(e Event) {
	if h := eb.handlers[e]; h != nil {
		h(eb)
	}
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// millis converts a duration to whole milliseconds, clamped to the uint32 range.
func millis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}
