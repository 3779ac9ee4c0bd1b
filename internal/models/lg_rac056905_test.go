package models

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/engine"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

type captured struct {
	property string
	value    field.Value
}

type mockSurface struct {
	published []captured
	sent      map[field.ID]int
	writes    int
}

func (m *mockSurface) Publish(_, property string, v field.Value) error {
	m.published = append(m.published, captured{property, v})
	return nil
}

func (m *mockSurface) SendRaw(_ string, id field.ID, raw int) error {
	if m.sent == nil {
		m.sent = make(map[field.ID]int)
	}
	m.sent[id] = raw
	m.writes++
	return nil
}

func (m *mockSurface) last(property string) field.Value {
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].property == property {
			return m.published[i].value
		}
	}
	return nil
}

func newLGEngine(t *testing.T) (*engine.Engine, *mockSurface) {
	t.Helper()
	return newLGEngineDepth(t, 0)
}

func newLGEngineDepth(t *testing.T, depth int) (*engine.Engine, *mockSurface) {
	t.Helper()

	reg, err := LGRAC056905WW.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	surface := &mockSurface{}
	e, err := engine.New(engine.Options{
		DeviceID:        "ac-1",
		Registry:        reg,
		Publisher:       surface,
		Sender:          surface,
		MaxCascadeDepth: depth,
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return e, surface
}

func TestLookup(t *testing.T) {
	m, err := Lookup("RAC_056905_WW")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if m.Manufacturer != "LG" {
		t.Errorf("Manufacturer = %q, want LG", m.Manufacturer)
	}

	if _, err := Lookup("nope"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Lookup(nope) error = %v, want %v", err, ErrUnknownModel)
	}

	if ids := IDs(); len(ids) == 0 || ids[0] != "RAC_056905_WW" {
		t.Errorf("IDs() = %v", ids)
	}
}

func TestLGRAC056905WW_Declaration(t *testing.T) {
	reg, err := LGRAC056905WW.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	if reg.Len() != 9 {
		t.Errorf("Len() = %d, want 9", reg.Len())
	}
	if cycles := reg.StaticCycles(); len(cycles) != 0 {
		t.Errorf("StaticCycles() = %v, want none", cycles)
	}

	power, _ := reg.ByName("power")
	if power.Readable() {
		t.Error("power is readable, want hidden")
	}
	for _, name := range []string{"current_temperature", "energy_consumption"} {
		d, _ := reg.ByName(name)
		if d.Writable() {
			t.Errorf("%s is writable, want read-only", name)
		}
	}
}

func TestLGRAC056905WW_Read(t *testing.T) {
	tests := []struct {
		name     string
		id       field.ID
		raw      int
		property string
		want     field.Value
	}{
		{"room temperature halves", LGRegCurrentTemperature, 45, "current_temperature", 22.5},
		{"setpoint halves", LGRegTemperature, 48, "temperature", 24.0},
		{"mode cool", LGRegMode, 0, "mode", "cool"},
		{"mode auto", LGRegMode, 6, "mode", "auto"},
		{"mode gap", LGRegMode, 3, "mode", nil},
		{"fan very low", LGRegFanMode, 2, "fan_mode", "very low"},
		{"fan auto", LGRegFanMode, 8, "fan_mode", "auto"},
		{"fan gap", LGRegFanMode, 7, "fan_mode", nil},
		{"swing 1-3", LGRegSwing, 13, "swing_mode", "1-3"},
		{"swing 3-5", LGRegSwing, 35, "swing_mode", "3-5"},
		{"swing on", LGRegSwing, 100, "swing_mode", "on"},
		{"swing unknown", LGRegSwing, 42, "swing_mode", nil},
		{"vertical swing 6", LGRegVerticalSwing, 6, "vertical_swing_mode", "6"},
		{"vertical swing on", LGRegVerticalSwing, 100, "vertical_swing_mode", "on"},
		{"light on", LGRegLight, 1, "light", field.On},
		{"light other", LGRegLight, 2, "light", field.Off},
		{"energy identity", LGRegEnergy, 12345, "energy_consumption", 12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, surface := newLGEngine(t)
			if err := e.OnRawUpdate(tt.id, tt.raw); err != nil {
				t.Fatalf("OnRawUpdate() error = %v", err)
			}
			if len(surface.published) != 1 {
				t.Fatalf("published %d values, want 1", len(surface.published))
			}
			if got := surface.last(tt.property); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.property, got, tt.want)
			}
		})
	}
}

func TestLGRAC056905WW_SwingRoundTrip(t *testing.T) {
	for raw, name := range map[int]string{13: "1-3", 35: "3-5", 100: "on", 0: "off"} {
		e, surface := newLGEngine(t)
		if err := e.SetProperty("swing_mode", name); err != nil {
			t.Fatalf("SetProperty(%q) error = %v", name, err)
		}
		if got := surface.sent[LGRegSwing]; got != raw {
			t.Errorf("SetProperty(%q) sent %d, want %d", name, got, raw)
		}
	}
}

func TestLGRAC056905WW_TemperatureRoundTrip(t *testing.T) {
	for raw := 32; raw <= 60; raw += 2 {
		e, surface := newLGEngine(t)
		if err := e.OnRawUpdate(LGRegTemperature, raw); err != nil {
			t.Fatalf("OnRawUpdate() error = %v", err)
		}
		if err := e.SetProperty("temperature", surface.last("temperature")); err != nil {
			t.Fatalf("SetProperty() error = %v", err)
		}
		if got := surface.sent[LGRegTemperature]; got != raw {
			t.Errorf("round trip of %d sent %d", raw, got)
		}
	}
}

func TestLGRAC056905WW_PowerOnRederivesMode(t *testing.T) {
	e, surface := newLGEngine(t)

	for _, u := range []struct {
		id  field.ID
		raw int
	}{
		{LGRegPower, 0},
		{LGRegMode, 4},
		{LGRegFanMode, 5},
		{LGRegTemperature, 44},
	} {
		if err := e.OnRawUpdate(u.id, u.raw); err != nil {
			t.Fatalf("OnRawUpdate(%s) error = %v", u.id, err)
		}
	}
	if got := surface.last("mode"); got != ModeOff {
		t.Fatalf("mode = %v, want off", got)
	}

	if err := e.SetProperty("power", field.On); err != nil {
		t.Fatalf("SetProperty(power) error = %v", err)
	}
	if got := surface.last("mode"); got != "heat" {
		t.Errorf("mode after power on = %v, want heat", got)
	}
	if got := surface.sent[LGRegPower]; got != 1 {
		t.Errorf("power raw = %d, want 1", got)
	}
}

func TestLGRAC056905WW_ModeOffPowersDown(t *testing.T) {
	e, surface := newLGEngine(t)

	for id, raw := range map[field.ID]int{LGRegPower: 1, LGRegMode: 0, LGRegFanMode: 8, LGRegTemperature: 40} {
		if err := e.OnRawUpdate(id, raw); err != nil {
			t.Fatalf("OnRawUpdate(%s) error = %v", id, err)
		}
	}

	if err := e.SetProperty("mode", ModeOff); err != nil {
		t.Fatalf("SetProperty(mode, off) error = %v", err)
	}
	if surface.writes != 1 || surface.sent[LGRegPower] != 0 {
		t.Errorf("sent = %v (%d writes), want only power=0", surface.sent, surface.writes)
	}
	if got := surface.last("mode"); got != ModeOff {
		t.Errorf("mode = %v, want off", got)
	}
}

func TestLGRAC056905WW_PowerEchoRederivesMode(t *testing.T) {
	e, surface := newLGEngine(t)

	if err := e.OnRawUpdate(LGRegMode, 1); err != nil {
		t.Fatalf("OnRawUpdate(mode) error = %v", err)
	}
	if err := e.OnRawUpdate(LGRegPower, 0); err != nil {
		t.Fatalf("OnRawUpdate(power) error = %v", err)
	}
	if got := surface.last("mode"); got != ModeOff {
		t.Errorf("mode = %v, want off", got)
	}
	if err := e.OnRawUpdate(LGRegPower, 1); err != nil {
		t.Fatalf("OnRawUpdate(power) error = %v", err)
	}
	if got := surface.last("mode"); got != "dry" {
		t.Errorf("mode = %v, want dry", got)
	}
}

func TestLGRAC056905WW_WritesStayWithinDepth(t *testing.T) {
	writes := []struct {
		property string
		value    field.Value
	}{
		{"power", field.On},
		{"power", field.Off},
		{"mode", "cool"},
		{"mode", ModeOff},
		{"fan_mode", "high"},
		{"temperature", 21.5},
		{"swing_mode", "on"},
		{"vertical_swing_mode", "3"},
		{"light", field.On},
	}

	e, _ := newLGEngine(t)
	for id, raw := range map[field.ID]int{
		LGRegPower: 1, LGRegMode: 0, LGRegFanMode: 4, LGRegTemperature: 44,
		LGRegSwing: 0, LGRegVerticalSwing: 0, LGRegLight: 0,
	} {
		if err := e.OnRawUpdate(id, raw); err != nil {
			t.Fatalf("OnRawUpdate(%s) error = %v", id, err)
		}
	}

	for _, w := range writes {
		if err := e.SetProperty(w.property, w.value); err != nil {
			t.Errorf("SetProperty(%s, %v) error = %v", w.property, w.value, err)
		}
	}
}

func TestLGRAC056905WW_RequiredCascadeDepth(t *testing.T) {
	reg, err := LGRAC056905WW.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	need := LGRAC056905WW.RequiredCascadeDepth(reg)
	if need != 4 {
		t.Fatalf("RequiredCascadeDepth() = %d, want 4", need)
	}

	seed := map[field.ID]int{LGRegPower: 1, LGRegMode: 0, LGRegFanMode: 4, LGRegTemperature: 44}
	for _, tt := range []struct {
		depth   int
		wantErr bool
	}{
		{need, false},
		{need - 1, true},
	} {
		e, _ := newLGEngineDepth(t, tt.depth)
		for id, raw := range seed {
			if err := e.OnRawUpdate(id, raw); err != nil {
				t.Fatalf("OnRawUpdate(%s) error = %v", id, err)
			}
		}
		err := e.SetProperty("mode", ModeOff)
		if gotErr := errors.Is(err, engine.ErrCascadeDepthExceeded); gotErr != tt.wantErr {
			t.Errorf("depth %d: SetProperty(mode, off) error = %v, wantErr %v", tt.depth, err, tt.wantErr)
		}
	}
}
