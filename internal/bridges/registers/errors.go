package registers

import "errors"

var (
	// ErrInvalidFrame is returned when a payload is not a valid CBOR frame.
	ErrInvalidFrame = errors.New("registers: invalid frame")

	// ErrEmptyFrame is returned for a frame with no registers.
	ErrEmptyFrame = errors.New("registers: empty frame")

	// ErrRegisterRange is returned when a register value does not fit the
	// device's integer range.
	ErrRegisterRange = errors.New("registers: value out of range")
)
