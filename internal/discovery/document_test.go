package discovery

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

func testRegistry(t *testing.T) *field.Registry {
	t.Helper()
	reg, err := field.NewRegistry(
		field.Descriptor{ID: 1, Name: "current_temperature", Access: field.AccessRead},
		field.Descriptor{ID: 2, Name: "mode", Meta: field.Meta{Options: []string{"off", "cool"}}},
		field.Descriptor{ID: 3, Name: "light"},
		field.Descriptor{ID: 4, Name: "energy_consumption", Access: field.AccessRead,
			Meta: field.Meta{Unit: "Wh", DeviceClass: "energy", StateClass: "total_increasing"}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func testParams() Params {
	return Params{
		DeviceID:          "ac-1",
		DeviceName:        "Living Room AC",
		Manufacturer:      "LG",
		Model:             "RAC_056905_WW",
		BaseTopic:         "graylogic/appliances/ac-1",
		AvailabilityTopic: "graylogic/appliances/status",
		Origin:            Origin{Name: "appliancebridge", SWVersion: "1.0.0"},
	}
}

func TestBuild(t *testing.T) {
	components := []Component{
		{
			Key:      "climate",
			Platform: "climate",
			Name:     "Climate",
			Bindings: []Binding{
				{Property: "current_temperature", StateKey: "current_temperature_topic"},
				{Prefix: "mode", Property: "mode"},
			},
			OptionLists: map[string]string{"modes": "mode"},
			Static:      map[string]any{"temp_step": 0.5, "json_attributes_topic": "$this/attrs"},
		},
		{Key: "light", Platform: "switch", Name: "Display Light", Bindings: []Binding{{Property: "light"}}},
		{Key: "energy", Platform: "sensor", Name: "Energy", Bindings: []Binding{{Property: "energy_consumption"}}},
	}

	doc, err := Build(testParams(), testRegistry(t), components)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	climate := doc.Components["climate"]
	checks := map[string]any{
		"platform":                  "climate",
		"unique_id":                 "ac-1-climate",
		"current_temperature_topic": "graylogic/appliances/ac-1/current_temperature",
		"mode_state_topic":          "graylogic/appliances/ac-1/mode",
		"mode_command_topic":        "graylogic/appliances/ac-1/mode/set",
		"temp_step":                 0.5,
		"json_attributes_topic":     "graylogic/appliances/ac-1/attrs",
	}
	for key, want := range checks {
		if got := climate[key]; got != want {
			t.Errorf("climate[%s] = %v, want %v", key, got, want)
		}
	}
	if _, ok := climate["current_temperature_command_topic"]; ok {
		t.Error("read-only field produced a command topic")
	}
	if _, ok := climate["unit_of_measurement"]; ok {
		t.Error("climate picked up single-entity metadata")
	}
	if got := climate["modes"]; !reflect.DeepEqual(got, []string{"off", "cool"}) {
		t.Errorf("climate[modes] = %v", got)
	}

	light := doc.Components["light"]
	if light["state_topic"] != "graylogic/appliances/ac-1/light" ||
		light["command_topic"] != "graylogic/appliances/ac-1/light/set" {
		t.Errorf("light topics = %v, %v", light["state_topic"], light["command_topic"])
	}

	energy := doc.Components["energy"]
	for key, want := range map[string]string{
		"unit_of_measurement": "Wh",
		"device_class":        "energy",
		"state_class":         "total_increasing",
	} {
		if got := energy[key]; got != want {
			t.Errorf("energy[%s] = %v, want %s", key, got, want)
		}
	}

	if doc.Device.Identifiers[0] != "ac-1" || doc.Device.Manufacturer != "LG" {
		t.Errorf("Device = %+v", doc.Device)
	}
}

func TestBuild_Errors(t *testing.T) {
	reg := testRegistry(t)

	_, err := Build(testParams(), reg, []Component{
		{Key: "x", Bindings: []Binding{{Property: "humidity"}}},
	})
	if !errors.Is(err, ErrUnknownBinding) {
		t.Errorf("Build() error = %v, want %v", err, ErrUnknownBinding)
	}

	_, err = Build(testParams(), reg, []Component{
		{Key: "x", OptionLists: map[string]string{"modes": "nope"}},
	})
	if !errors.Is(err, ErrUnknownBinding) {
		t.Errorf("Build() error = %v, want %v", err, ErrUnknownBinding)
	}

	_, err = Build(testParams(), reg, []Component{{Key: "x"}, {Key: "x"}})
	if !errors.Is(err, ErrDuplicateComponent) {
		t.Errorf("Build() error = %v, want %v", err, ErrDuplicateComponent)
	}
}

func TestDocument_Marshal(t *testing.T) {
	doc, err := Build(testParams(), testRegistry(t), []Component{
		{Key: "light", Platform: "switch", Bindings: []Binding{{Property: "light"}}},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	for _, key := range []string{"device", "origin", "availability_topic", "components"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("marshalled document missing %q", key)
		}
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("homeassistant", "ac-1"); got != "homeassistant/device/ac-1/config" {
		t.Errorf("Topic() = %q", got)
	}
}
