package device

import "errors"

// Domain errors for the device package.
var (
	// ErrDeviceNotFound is returned when a device ID is not managed.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when adding a device whose ID is taken.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device options are incomplete.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrDeviceStopped is returned when work is queued on a stopped device.
	ErrDeviceStopped = errors.New("device: stopped")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("device: already started")
)
