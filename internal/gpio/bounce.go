package gpio

import (
	"math"
	"time"
)

// Bounce debounces a LevelReader. A raw change restarts the settle timer; the
// debounced level only follows once the raw level has held for the interval.
//
// Bounce satisfies encoderbutton.Debouncer.
type Bounce struct {
	pin      LevelReader
	clock    Clock
	interval uint32

	debounced bool // true = high
	raw       bool // last raw sample, possibly unstable
	changed   bool

	rawSince    uint32 // when raw last changed
	levelSince  uint32 // when debounced last changed
	previousDur uint32

	err error
}

// NewBounce creates a debouncer seeded with the current level of pin.
// A failed first read seeds high (released), matching the pull-up.
func NewBounce(pin LevelReader, clock Clock) *Bounce {
	b := &Bounce{
		pin:      pin,
		clock:    clock,
		interval: uint32(DefaultDebounce / time.Millisecond),
		raw:      true,
	}
	b.raw = b.read()
	b.debounced = b.raw
	now := clock.Millis()
	b.rawSince = now
	b.levelSince = now
	return b
}

// Update samples the pin and reports whether the debounced level changed.
func (b *Bounce) Update() bool {
	b.changed = false
	sample := b.read()
	now := b.clock.Millis()

	if sample != b.raw {
		b.raw = sample
		b.rawSince = now
		return false
	}
	if now-b.rawSince < b.interval || sample == b.debounced {
		return false
	}

	b.rawSince = now
	b.debounced = sample
	b.previousDur = now - b.levelSince
	b.levelSince = now
	b.changed = true
	return true
}

// read returns the raw level, holding the last sample if the pin fails.
func (b *Bounce) read() bool {
	v, err := b.pin.Value()
	b.err = err
	if err != nil {
		return b.raw
	}
	return v != 0
}

// Read returns the debounced level; true = high.
func (b *Bounce) Read() bool { return b.debounced }

// Fell reports a high-to-low edge on the last Update.
func (b *Bounce) Fell() bool { return b.changed && !b.debounced }

// Rose reports a low-to-high edge on the last Update.
func (b *Bounce) Rose() bool { return b.changed && b.debounced }

// CurrentDuration is how long the debounced level has been held.
func (b *Bounce) CurrentDuration() time.Duration {
	return time.Duration(b.clock.Millis()-b.levelSince) * time.Millisecond
}

// PreviousDuration is how long the previous debounced level was held.
func (b *Bounce) PreviousDuration() time.Duration {
	return time.Duration(b.previousDur) * time.Millisecond
}

// SetInterval sets the settle interval.
func (b *Bounce) SetInterval(d time.Duration) {
	switch {
	case d <= 0:
		b.interval = 0
	case d/time.Millisecond > math.MaxUint32:
		b.interval = math.MaxUint32
	default:
		b.interval = uint32(d / time.Millisecond)
	}
}

// Err returns the error from the most recent pin read, if any.
func (b *Bounce) Err() error { return b.err }
