package gpio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// FakeLine is a test double that returns scripted line levels.
type FakeLine struct {
	mu sync.Mutex

	// Samples contains scripted raw levels (0 or 1) to return.
	// Each call to Value() consumes the next sample.
	Samples []int

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Value()
	ReadError error
}

// NewFakeLine creates a FakeLine with the given samples.
func NewFakeLine(samples ...int) *FakeLine {
	return &FakeLine{Samples: samples}
}

// Value returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeLine) Value() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Set replaces the script with a single level held from now on.
func (f *FakeLine) Set(level int) {
	f.mu.Lock()
	f.Samples = []int{level}
	f.index = 0
	f.mu.Unlock()
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset rewinds to the beginning of samples.
func (f *FakeLine) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Closed = false
	f.mu.Unlock()
}

// FakeClock is a manually advanced millisecond clock.
type FakeClock struct {
	now atomic.Uint32
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start uint32) *FakeClock {
	c := &FakeClock{}
	c.now.Store(start)
	return c
}

// Millis returns the current reading.
func (c *FakeClock) Millis() uint32 { return c.now.Load() }

// Advance moves the clock forward by d, wrapping at 2^32 ms.
func (c *FakeClock) Advance(d time.Duration) {
	c.now.Add(uint32(d / time.Millisecond))
}

// Set jumps the clock to ms.
func (c *FakeClock) Set(ms uint32) { c.now.Store(ms) }

// FakeCounter is a tick counter whose value is set directly by tests.
type FakeCounter struct {
	ticks atomic.Int32
}

// NewFakeCounter creates a counter at zero.
func NewFakeCounter() *FakeCounter {
	return &FakeCounter{}
}

// Turn adds n raw ticks (negative turns the other way).
func (c *FakeCounter) Turn(n int32) { c.ticks.Add(n) }

// Read returns the tick count.
func (c *FakeCounter) Read() int32 { return c.ticks.Load() }

// Write overwrites the tick count.
func (c *FakeCounter) Write(ticks int32) { c.ticks.Store(ticks) }

// ReadAndReset returns the tick count and zeroes it.
func (c *FakeCounter) ReadAndReset() int32 { return c.ticks.Swap(0) }

// FakeButton is an already-debounced switch. Press and Release queue a level
// that the next Update reports as an edge.
type FakeButton struct {
	clock Clock

	level      bool // true = high (released)
	next       bool
	pending    bool
	changed    bool
	levelSince uint32
	previous   uint32

	// Interval records the last SetInterval call.
	Interval time.Duration
}

// NewFakeButton creates a released switch whose durations are measured on clock.
func NewFakeButton(clock Clock) *FakeButton {
	return &FakeButton{
		clock:      clock,
		level:      true,
		levelSince: clock.Millis(),
		Interval:   DefaultDebounce,
	}
}

// Press queues a falling edge.
func (b *FakeButton) Press() { b.next, b.pending = false, true }

// Release queues a rising edge.
func (b *FakeButton) Release() { b.next, b.pending = true, true }

// Update applies any queued level and reports whether it was an edge.
func (b *FakeButton) Update() bool {
	b.changed = false
	if b.pending && b.next != b.level {
		now := b.clock.Millis()
		b.previous = now - b.levelSince
		b.levelSince = now
		b.level = b.next
		b.changed = true
	}
	b.pending = false
	return b.changed
}

// Read returns the level; true = released.
func (b *FakeButton) Read() bool { return b.level }

// Fell reports a press on the last Update.
func (b *FakeButton) Fell() bool { return b.changed && !b.level }

// Rose reports a release on the last Update.
func (b *FakeButton) Rose() bool { return b.changed && b.level }

// CurrentDuration is how long the level has been held.
func (b *FakeButton) CurrentDuration() time.Duration {
	return time.Duration(b.clock.Millis()-b.levelSince) * time.Millisecond
}

// PreviousDuration is how long the previous level was held.
func (b *FakeButton) PreviousDuration() time.Duration {
	return time.Duration(b.previous) * time.Millisecond
}

// SetInterval records d.
func (b *FakeButton) SetInterval(d time.Duration) { b.Interval = d }
