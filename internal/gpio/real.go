//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// encoderDebounce filters contact chatter on the encoder channels in the kernel.
const encoderDebounce = 250 * time.Microsecond

// RealSwitch reads the encoder push switch from the GPIO character device.
// The line is biased high; pressed reads 0.
type RealSwitch struct {
	line *gpiocdev.Line
}

// NewRealSwitch requests pin on chip as a pulled-up input.
func NewRealSwitch(chip string, pin int) (*RealSwitch, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request switch pin %d: %w", pin, err)
	}

	// Let a passive R-C filter charge through the pull-up before the
	// first read, otherwise the initial level reads as pressed.
	time.Sleep(2 * time.Millisecond)

	return &RealSwitch{line: line}, nil
}

// Value returns the raw line level.
func (s *RealSwitch) Value() (int, error) {
	v, err := s.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read switch pin: %w", err)
	}
	return v, nil
}

// Close releases the line.
func (s *RealSwitch) Close() error {
	if s.line == nil {
		return nil
	}
	if err := s.line.Close(); err != nil {
		return fmt.Errorf("close switch pin: %w", err)
	}
	return nil
}

// encoderLines is the part of *gpiocdev.Lines the encoder uses after the
// request.
type encoderLines interface {
	Values(values []int) error
	Reconfigure(options ...gpiocdev.LineConfigOption) error
	Close() error
}

// RealEncoder counts quadrature ticks from two GPIO lines. Edges arrive on
// the gpiocdev event goroutine and are decoded by the embedded Quadrature.
type RealEncoder struct {
	*Quadrature
	lines encoderLines
	pinA  int
	pinB  int
}

// NewRealEncoder requests pinA and pinB on chip with both-edge detection.
func NewRealEncoder(chip string, pinA, pinB int) (*RealEncoder, error) {
	e := &RealEncoder{
		Quadrature: &Quadrature{},
		pinA:       pinA,
		pinB:       pinB,
	}

	// Lines are requested without edge detection so the decoder can be
	// seeded from the current levels before any edge reaches the handler.
	lines, err := gpiocdev.RequestLines(chip, []int{pinA, pinB},
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithEventHandler(e.handleEvent))
	if err != nil {
		return nil, fmt.Errorf("request encoder pins %d,%d: %w", pinA, pinB, err)
	}
	if err := e.start(lines); err != nil {
		lines.Close()
		return nil, err
	}
	return e, nil
}

// start seeds the decoder from the current levels, then enables edges.
func (e *RealEncoder) start(lines encoderLines) error {
	vals := make([]int, 2)
	if err := lines.Values(vals); err != nil {
		return fmt.Errorf("read encoder pins: %w", err)
	}
	e.Seed(vals[0] != 0, vals[1] != 0)

	if err := lines.Reconfigure(
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(encoderDebounce)); err != nil {
		return fmt.Errorf("enable edges on encoder pins %d,%d: %w", e.pinA, e.pinB, err)
	}
	e.lines = lines
	return nil
}

func (e *RealEncoder) handleEvent(evt gpiocdev.LineEvent) {
	var high bool
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		high = true
	case gpiocdev.LineEventFallingEdge:
		high = false
	default:
		return
	}

	switch evt.Offset {
	case e.pinA:
		e.SetA(high)
	case e.pinB:
		e.SetB(high)
	}
}

// Close stops edge detection and releases both lines.
func (e *RealEncoder) Close() error {
	if e.lines == nil {
		return nil
	}
	var errs []error

	// Drop edge detection before release so no handler runs during close.
	if err := e.lines.Reconfigure(gpiocdev.WithoutEdges); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure encoder pins: %w", err))
	}
	if err := e.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close encoder pins: %w", err))
	}

	return errors.Join(errs...)
}
