package models

import "errors"

// Domain errors for the model catalogue.
var (
	// ErrUnknownModel is returned by Lookup for ids not in the catalogue.
	ErrUnknownModel = errors.New("models: unknown model")
)
