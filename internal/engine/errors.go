package engine

import "errors"

// Domain errors for the translation engine.
var (
	// ErrUnknownProperty is returned when SetProperty names no registered field.
	ErrUnknownProperty = errors.New("engine: unknown property")

	// ErrNotWritable is returned when SetProperty targets a read-only field.
	ErrNotWritable = errors.New("engine: property not writable")

	// ErrTransformFailure wraps errors raised by read or write transforms.
	ErrTransformFailure = errors.New("engine: transform failed")

	// ErrCascadeDepthExceeded is returned when nested writes and dependent
	// re-derivations go deeper than the configured limit.
	ErrCascadeDepthExceeded = errors.New("engine: cascade depth exceeded")

	// ErrNoRegistry is returned by New without a field registry.
	ErrNoRegistry = errors.New("engine: field registry is required")
)

// isEngineError reports whether err already carries an engine classification,
// so nested failures pass through a write transform unchanged.
func isEngineError(err error) bool {
	return errors.Is(err, ErrCascadeDepthExceeded) ||
		errors.Is(err, ErrUnknownProperty) ||
		errors.Is(err, ErrNotWritable) ||
		errors.Is(err, ErrTransformFailure)
}
