package encoderbutton

import "time"

// SetHandler registers f for event e, replacing any previous handler.
// A nil f clears the slot.
func (eb *EncoderButton) SetHandler(e Event, f Handler) {
	if e < 0 || e >= numEvents {
		return
	}
	eb.handlers[e] = f
}

// SetChangedHandler fires on every debounced switch transition.
func (eb *EncoderButton) SetChangedHandler(f Handler) { eb.handlers[EventChanged] = f }

// SetPressedHandler fires when the switch goes down.
func (eb *EncoderButton) SetPressedHandler(f Handler) { eb.handlers[EventPressed] = f }

// SetReleasedHandler fires when the switch comes up. If the encoder was turned
// during the press the encoder-released handler fires instead.
func (eb *EncoderButton) SetReleasedHandler(f Handler) { eb.handlers[EventReleased] = f }

// SetClickHandler fires once per click gesture shorter than the long click
// duration. ClickCount reports how many clicks the gesture contained, so any
// multi-click can be handled here. Double and triple clicks go to their own
// handlers when those are registered.
func (eb *EncoderButton) SetClickHandler(f Handler) { eb.handlers[EventClick] = f }

// SetDoubleClickHandler fires for a gesture of exactly two clicks.
func (eb *EncoderButton) SetDoubleClickHandler(f Handler) { eb.handlers[EventDoubleClick] = f }

// SetTripleClickHandler fires for a gesture of exactly three clicks.
func (eb *EncoderButton) SetTripleClickHandler(f Handler) { eb.handlers[EventTripleClick] = f }

// SetLongClickHandler fires after the release of a press held longer than the
// long click duration.
func (eb *EncoderButton) SetLongClickHandler(f Handler) { eb.handlers[EventLongClick] = f }

// SetLongPressHandler fires while the switch is held past the long click
// duration. With repeat it fires again at every further multiple of that
// duration.
func (eb *EncoderButton) SetLongPressHandler(f Handler, repeat bool) {
	eb.handlers[EventLongPress] = f
	eb.longPressRepeat = repeat
}

// SetEncoderHandler fires when the encoder turns while the switch is up.
func (eb *EncoderButton) SetEncoderHandler(f Handler) { eb.handlers[EventEncoder] = f }

// SetEncoderPressedHandler fires when the encoder turns while the switch is down.
func (eb *EncoderButton) SetEncoderPressedHandler(f Handler) {
	eb.handlers[EventEncoderPressed] = f
}

// SetEncoderReleasedHandler fires on the release that ends a press during
// which the encoder was turned.
func (eb *EncoderButton) SetEncoderReleasedHandler(f Handler) {
	eb.handlers[EventEncoderReleased] = f
}

// SetIdleHandler fires once after nothing has happened for the idle timeout.
func (eb *EncoderButton) SetIdleHandler(f Handler) { eb.handlers[EventIdle] = f }

// SetDebounceInterval forwards the settle interval to the switch.
func (eb *EncoderButton) SetDebounceInterval(d time.Duration) {
	if eb.hasButton {
		eb.button.SetInterval(d)
	}
}

// SetMultiClickInterval sets how long after a release a further press still
// counts towards the same gesture.
func (eb *EncoderButton) SetMultiClickInterval(d time.Duration) {
	eb.multiClickInterval = millis(d)
}

// SetLongClickDuration sets the hold time that separates a click from a long
// click. It is also the long press repeat period.
func (eb *EncoderButton) SetLongClickDuration(d time.Duration) {
	eb.longClickDuration = millis(d)
}

// SetLongPressRepeat chooses whether the long press handler repeats.
func (eb *EncoderButton) SetLongPressRepeat(repeat bool) { eb.longPressRepeat = repeat }

// SetRateLimit sets the minimum time between encoder passes. Ticks are never
// dropped: turns made between passes are reported as one larger Increment.
// Zero disables the limit.
func (eb *EncoderButton) SetRateLimit(d time.Duration) { eb.rateLimit = millis(d) }

// UseQuadPrecision selects one event per raw quadrature transition (true) or
// one per detent (false, the default). Call it before polling starts, or
// follow it with ResetPosition, to avoid a jump in the reported position.
func (eb *EncoderButton) UseQuadPrecision(fine bool) {
	if fine {
		eb.divisor = 1
	} else {
		eb.divisor = 4
	}
}

// ResetPosition sets the released-rotation position and re-baselines the tick
// counter so the next pass sees no movement.
func (eb *EncoderButton) ResetPosition(pos int32) {
	eb.rebaseline()
	eb.position = pos
}

// ResetPressedPosition sets the pressed-rotation position and re-baselines the
// tick counter.
func (eb *EncoderButton) ResetPressedPosition(pos int32) {
	eb.rebaseline()
	eb.pressedPosition = pos
}

func (eb *EncoderButton) rebaseline() {
	if eb.hasEncoder {
		eb.counter.ReadAndReset()
	}
	eb.encoderPosition = 0
}

// SetIdleTimeout sets how long without events before the idle handler fires.
func (eb *EncoderButton) SetIdleTimeout(d time.Duration) { eb.idleTimeout = millis(d) }

// SetUserID stores an opaque identifier for use by handlers.
func (eb *EncoderButton) SetUserID(id uint) { eb.userID = id }

// SetUserState stores an opaque value for use by handlers.
func (eb *EncoderButton) SetUserState(s uint) { eb.userState = s }

// Enable turns polling on or off. Enabling writes the last seen position back
// to the tick counter so turns made while disabled do not fire.
func (eb *EncoderButton) Enable(on bool) {
	eb.enabled = on
	if on && eb.hasEncoder {
		eb.counter.Write(eb.encoderPosition * eb.divisor)
	}
}

// Enabled reports whether Update is active.
func (eb *EncoderButton) Enabled() bool { return eb.enabled }

// HasButton reports whether a switch was supplied.
func (eb *EncoderButton) HasButton() bool { return eb.hasButton }

// HasEncoder reports whether a tick counter was supplied.
func (eb *EncoderButton) HasEncoder() bool { return eb.hasEncoder }

// QuadPrecision reports whether every raw transition is reported.
func (eb *EncoderButton) QuadPrecision() bool { return eb.divisor == 1 }

// ButtonState returns the debounced switch level; true (high) means released.
// Without a switch it always reports released.
func (eb *EncoderButton) ButtonState() bool {
	if !eb.hasButton {
		return true
	}
	return eb.button.Read()
}

// IsPressed reports whether the switch is down.
func (eb *EncoderButton) IsPressed() bool { return !eb.ButtonState() }

// CurrentDuration is how long the switch has held its current level.
func (eb *EncoderButton) CurrentDuration() time.Duration {
	if !eb.hasButton {
		return 0
	}
	return eb.button.CurrentDuration()
}

// PreviousDuration is how long the switch held its previous level.
func (eb *EncoderButton) PreviousDuration() time.Duration {
	if !eb.hasButton {
		return 0
	}
	return eb.button.PreviousDuration()
}

// ClickCount is the number of clicks in the gesture last finalized.
func (eb *EncoderButton) ClickCount() int { return eb.clickCount }

// LongPressCount is the number of long press periods crossed in the current
// press, counting from one.
func (eb *EncoderButton) LongPressCount() int { return eb.longPressCounter + 1 }

// Increment is the signed change in position reported by the last encoder
// event. It is larger than one when several steps arrived between passes.
func (eb *EncoderButton) Increment() int32 { return eb.increment }

// Position accumulates rotation made while the switch is up.
func (eb *EncoderButton) Position() int32 { return eb.position }

// PressedPosition accumulates rotation made while the switch is down.
func (eb *EncoderButton) PressedPosition() int32 { return eb.pressedPosition }

// SinceLastEvent is the time since any activity was recorded.
func (eb *EncoderButton) SinceLastEvent() time.Duration {
	return time.Duration(eb.clock.Millis()-eb.lastEventMs) * time.Millisecond
}

// UserID returns the value stored by SetUserID.
func (eb *EncoderButton) UserID() uint { return eb.userID }

// UserState returns the value stored by SetUserState.
func (eb *EncoderButton) UserState() uint { return eb.userState }
