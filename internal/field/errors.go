package field

import (
	"errors"
	"fmt"
)

// Domain-specific errors for field declarations.
var (
	// ErrDuplicateRegistration is the parent of ErrDuplicateID and ErrDuplicateName.
	ErrDuplicateRegistration = errors.New("field: duplicate registration")

	// ErrDuplicateID is returned when a register id is registered twice.
	ErrDuplicateID = fmt.Errorf("%w: register id", ErrDuplicateRegistration)

	// ErrDuplicateName is returned when a property name is registered twice.
	ErrDuplicateName = fmt.Errorf("%w: property name", ErrDuplicateRegistration)

	// ErrInvalidDescriptor is returned for a descriptor without a name.
	ErrInvalidDescriptor = errors.New("field: invalid descriptor")

	// ErrRegistrySealed is returned by Register after Seal.
	ErrRegistrySealed = errors.New("field: registry is sealed")

	// ErrUnknownValue is returned by write transforms for values outside
	// the field's domain.
	ErrUnknownValue = errors.New("field: value outside domain")

	// ErrInvalidValue is returned when a semantic value has the wrong type.
	ErrInvalidValue = errors.New("field: invalid value type")
)
