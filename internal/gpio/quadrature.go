package gpio

import "sync/atomic"

// quadTable maps (previous AB << 2 | current AB) to a tick delta.
// Channel A leading (AB: 00 -> 10 -> 11 -> 01) counts up. Invalid double
// steps count 0.
var quadTable = [16]int32{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

const (
	maskA uint32 = 0b10
	maskB uint32 = 0b01
)

// Quadrature decodes A/B channel edges into a signed tick count, four ticks
// per detent. Edges may be delivered from another goroutine (e.g. a gpiocdev
// event handler) while the poll loop reads the count.
//
// Quadrature satisfies encoderbutton.TickCounter.
type Quadrature struct {
	state atomic.Uint32
	ticks atomic.Int32
}

// Seed sets the current channel levels without counting a step.
func (q *Quadrature) Seed(a, b bool) {
	var s uint32
	if a {
		s |= maskA
	}
	if b {
		s |= maskB
	}
	q.state.Store(s)
}

// SetA records a new level on channel A.
func (q *Quadrature) SetA(high bool) { q.set(maskA, high) }

// SetB records a new level on channel B.
func (q *Quadrature) SetB(high bool) { q.set(maskB, high) }

func (q *Quadrature) set(mask uint32, high bool) {
	for {
		prev := q.state.Load()
		cur := prev &^ mask
		if high {
			cur |= mask
		}
		if q.state.CompareAndSwap(prev, cur) {
			q.ticks.Add(quadTable[prev<<2|cur])
			return
		}
	}
}

// Read returns the running tick count.
func (q *Quadrature) Read() int32 { return q.ticks.Load() }

// Write overwrites the running tick count.
func (q *Quadrature) Write(ticks int32) { q.ticks.Store(ticks) }

// ReadAndReset returns the running tick count and zeroes it.
func (q *Quadrature) ReadAndReset() int32 { return q.ticks.Swap(0) }
