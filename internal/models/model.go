package models

import (
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/discovery"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// Model describes one appliance type.
type Model struct {
	// ID is the vendor model code used in configuration.
	ID string

	// Manufacturer and Name are shown on the hub.
	Manufacturer string
	Name         string

	// Declare returns the model's field descriptors in registration order.
	Declare func() []field.Descriptor

	// Components are the hub entities built from the fields.
	Components []discovery.Component

	// MinCascadeDepth is the depth its deepest write needs once nested
	// writes and dynamic attachments are counted, which the registry
	// cannot see statically.
	MinCascadeDepth int
}

// RequiredCascadeDepth is the smallest cascade depth limit under which
// every write the model supports completes.
func (m Model) RequiredCascadeDepth(reg *field.Registry) int {
	return max(reg.LongestStaticChain(), m.MinCascadeDepth)
}

// Registry builds a sealed field registry for one device of this model.
func (m Model) Registry() (*field.Registry, error) {
	reg, err := field.NewRegistry(m.Declare()...)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", m.ID, err)
	}
	return reg, nil
}

var catalogue = map[string]Model{
	LGRAC056905WW.ID: LGRAC056905WW,
}

// Lookup returns the model registered under id.
func Lookup(id string) (Model, error) {
	m, ok := catalogue[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return m, nil
}

// IDs returns the catalogue's model ids in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(catalogue))
	for id := range catalogue {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
