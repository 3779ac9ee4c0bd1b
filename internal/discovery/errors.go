package discovery

import "errors"

// Domain errors for discovery documents.
var (
	// ErrUnknownBinding is returned when a component binds a property the
	// device does not declare.
	ErrUnknownBinding = errors.New("discovery: component binds unknown property")

	// ErrDuplicateComponent is returned when two components share a key.
	ErrDuplicateComponent = errors.New("discovery: duplicate component key")
)
