// Package gpio provides the hardware side of an encoder button: a debounced
// switch, a quadrature tick counter and a millisecond clock.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "time"

// LevelReader reads the raw level of a single input line (0 or 1).
type LevelReader interface {
	Value() (int, error)
}

// Clock is a wrapping millisecond counter.
type Clock interface {
	Millis() uint32
}

// Pin definitions (BCM numbering)
const (
	DefaultPinA      = 17 // Encoder channel A (CLK)
	DefaultPinB      = 27 // Encoder channel B (DT)
	DefaultPinSwitch = 22 // Encoder push switch, active low
)

// DefaultChip is the GPIO character device used when none is configured.
const DefaultChip = "gpiochip0"

// DefaultDebounce is the settle interval applied to the switch.
const DefaultDebounce = 10 * time.Millisecond

// MonotonicClock counts milliseconds since it was created.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock creates a clock starting at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Millis returns elapsed milliseconds, wrapping at 2^32.
func (c *MonotonicClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
