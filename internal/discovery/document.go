package discovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// Placeholders expanded in topic templates and static values.
const (
	PlaceholderThis     = "$this"
	PlaceholderDeviceID = "$deviceid"
)

// Component declares one hub entity.
type Component struct {
	// Key names the component inside the document (e.g. "climate").
	Key string

	// Platform is the hub platform (climate, switch, sensor).
	Platform string

	// Name is the entity's display name.
	Name string

	// Bindings maps option prefixes to property names. The empty prefix
	// produces state_topic/command_topic; "mode" produces
	// mode_state_topic/mode_command_topic. Command topics are only emitted
	// for writable fields, state topics only for readable ones.
	Bindings []Binding

	// OptionLists maps a list key (e.g. "fan_modes") to the property whose
	// Meta.Options supplies the values.
	OptionLists map[string]string

	// Static holds extra keys copied verbatim after placeholder expansion.
	Static map[string]any
}

// Binding ties an option prefix to a property.
type Binding struct {
	Prefix   string
	Property string

	// StateKey overrides the generated state topic key.
	StateKey string
}

// DeviceInfo identifies the physical device.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// Origin identifies the software publishing the document.
type Origin struct {
	Name      string `json:"name"`
	SWVersion string `json:"sw_version,omitempty"`
}

// Document is a device discovery document.
type Document struct {
	Device            DeviceInfo                `json:"device"`
	Origin            Origin                    `json:"origin"`
	AvailabilityTopic string                    `json:"availability_topic,omitempty"`
	Components        map[string]map[string]any `json:"components"`
}

// Params carries the per-device inputs to Build.
type Params struct {
	DeviceID          string
	DeviceName        string
	Manufacturer      string
	Model             string
	BaseTopic         string
	AvailabilityTopic string
	Origin            Origin
}

// Build assembles the discovery document for one device.
//
// Returns:
//   - ErrUnknownBinding if a component refers to an undeclared property
//   - ErrDuplicateComponent if two components share a key
func Build(p Params, reg *field.Registry, components []Component) (Document, error) {
	doc := Document{
		Device: DeviceInfo{
			Identifiers:  []string{p.DeviceID},
			Name:         p.DeviceName,
			Manufacturer: p.Manufacturer,
			Model:        p.Model,
		},
		Origin:            p.Origin,
		AvailabilityTopic: p.AvailabilityTopic,
		Components:        make(map[string]map[string]any, len(components)),
	}
	expand := strings.NewReplacer(
		PlaceholderThis, p.BaseTopic,
		PlaceholderDeviceID, p.DeviceID,
	)

	for _, c := range components {
		if _, exists := doc.Components[c.Key]; exists {
			return Document{}, fmt.Errorf("%w: %q", ErrDuplicateComponent, c.Key)
		}
		cfg, err := buildComponent(c, reg, expand)
		if err != nil {
			return Document{}, err
		}
		doc.Components[c.Key] = cfg
	}
	return doc, nil
}

func buildComponent(c Component, reg *field.Registry, expand *strings.Replacer) (map[string]any, error) {
	cfg := map[string]any{
		"platform":  c.Platform,
		"name":      c.Name,
		"unique_id": expand.Replace(PlaceholderDeviceID + "-" + c.Key),
	}

	for k, v := range c.Static {
		if s, ok := v.(string); ok {
			v = expand.Replace(s)
		}
		cfg[k] = v
	}

	for _, b := range c.Bindings {
		d, ok := reg.ByName(b.Property)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownBinding, c.Key, b.Property)
		}
		prefix := ""
		if b.Prefix != "" {
			prefix = b.Prefix + "_"
		}
		topic := PlaceholderThis + "/" + d.Name
		if d.Readable() {
			key := b.StateKey
			if key == "" {
				key = prefix + "state_topic"
			}
			cfg[key] = expand.Replace(topic)
		}
		if d.Writable() {
			cfg[prefix+"command_topic"] = expand.Replace(topic + "/set")
		}
		if b.Prefix == "" && b.StateKey == "" {
			addMeta(cfg, d.Meta)
		}
	}

	for key, property := range c.OptionLists {
		d, ok := reg.ByName(property)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownBinding, c.Key, property)
		}
		cfg[key] = append([]string(nil), d.Meta.Options...)
	}
	return cfg, nil
}

// addMeta copies descriptor metadata onto single-entity components.
func addMeta(cfg map[string]any, m field.Meta) {
	if m.Unit != "" {
		cfg["unit_of_measurement"] = m.Unit
	}
	if m.DeviceClass != "" {
		cfg["device_class"] = m.DeviceClass
	}
	if m.StateClass != "" {
		cfg["state_class"] = m.StateClass
	}
	if len(m.Options) > 0 {
		cfg["options"] = append([]string(nil), m.Options...)
	}
}

// Topic returns the topic a document is published to.
func Topic(prefix, deviceID string) string {
	return prefix + "/device/" + deviceID + "/config"
}

// Marshal encodes the document as JSON.
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
