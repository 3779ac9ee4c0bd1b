package hub

import "errors"

var (
	// ErrCommandQueueFull is returned when commands arrive faster than the
	// worker can apply them.
	ErrCommandQueueFull = errors.New("hub: command queue full")

	// ErrUnknownDevice is returned for a command to a device not served.
	ErrUnknownDevice = errors.New("hub: unknown device")
)
