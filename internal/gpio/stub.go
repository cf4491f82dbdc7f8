//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealSwitch is not available on non-Linux platforms.
type RealSwitch struct{}

// NewRealSwitch returns an error on non-Linux platforms.
func NewRealSwitch(chip string, pin int) (*RealSwitch, error) {
	return nil, errUnsupported
}

// Value is not implemented on non-Linux platforms.
func (s *RealSwitch) Value() (int, error) {
	return 0, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *RealSwitch) Close() error {
	return nil
}

// RealEncoder is not available on non-Linux platforms.
type RealEncoder struct {
	*Quadrature
}

// NewRealEncoder returns an error on non-Linux platforms.
func NewRealEncoder(chip string, pinA, pinB int) (*RealEncoder, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (e *RealEncoder) Close() error {
	return nil
}
