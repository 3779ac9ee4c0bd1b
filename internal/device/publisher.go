package device

import (
	"errors"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/engine"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// FanOut publishes every value to each publisher in order. Nil entries are
// skipped so optional sinks can be listed unconditionally.
type FanOut []engine.Publisher

// Publish calls every publisher and joins their errors.
func (f FanOut) Publish(deviceID, property string, v field.Value) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(deviceID, property, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Observers forwards transform failures to each observer in order.
type Observers []engine.Observer

// TransformFailed implements engine.Observer.
func (o Observers) TransformFailed(deviceID, property string, err error) {
	for _, obs := range o {
		if obs != nil {
			obs.TransformFailed(deviceID, property, err)
		}
	}
}
