package models

import (
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/discovery"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// LG RAC_056905_WW register map.
const (
	LGRegPower              field.ID = 0x1f7
	LGRegMode               field.ID = 0x1f9
	LGRegFanMode            field.ID = 0x1fa
	LGRegCurrentTemperature field.ID = 0x1fd
	LGRegTemperature        field.ID = 0x1fe
	LGRegLight              field.ID = 0x21f
	LGRegEnergy             field.ID = 0x232
	LGRegVerticalSwing      field.ID = 0x321
	LGRegSwing              field.ID = 0x322
)

// ModeOff is the mode reported while the unit is powered down.
const ModeOff = "off"

var (
	lgModes = field.NewEnum(map[int]string{
		0: "cool",
		1: "dry",
		2: "fan_only",
		4: "heat",
		6: "auto",
	})

	lgFanModes = field.NewEnum(map[int]string{
		2: "very low",
		3: "low",
		4: "medium",
		5: "high",
		6: "very high",
		8: "auto",
	})

	lgVerticalSwing = field.NewEnum(map[int]string{
		0: "off", 1: "1", 2: "2", 3: "3", 4: "4", 5: "5", 6: "6",
		100: "on",
	})

	lgSwing = field.NewEnum(map[int]string{
		0: "off", 1: "1", 2: "2", 3: "3", 4: "4", 5: "5",
		13: "1-3", 35: "3-5",
		100: "on",
	})
)

// LGRAC056905WW is the LG split air conditioner.
//
// Power is a hidden register: the hub sees it through mode, which reads
// "off" whenever power is 0. Writing mode "off" powers the unit down
// instead of writing the mode register.
//
// The device itself batches several registers per command. Attachments
// here only follow real derivations and are kept acyclic:
// power -> mode -> fan_mode -> temperature.
//
// Writing mode "off" is the deepest write: power at level 1, mode at 2,
// fan_mode at 3 and temperature at 4.
var LGRAC056905WW = Model{
	ID:              "RAC_056905_WW",
	Manufacturer:    "LG",
	Name:            "LG Air Conditioner",
	Declare:         declareLGRAC056905WW,
	MinCascadeDepth: 4,
	Components: []discovery.Component{
		{
			Key:      "climate",
			Platform: "climate",
			Name:     "Climate",
			Bindings: []discovery.Binding{
				{Property: "current_temperature", StateKey: "current_temperature_topic"},
				{Prefix: "mode", Property: "mode"},
				{Prefix: "fan_mode", Property: "fan_mode"},
				{Prefix: "temperature", Property: "temperature"},
				{Prefix: "vertical_swing_mode", Property: "vertical_swing_mode"},
				{Prefix: "swing_mode", Property: "swing_mode"},
			},
			OptionLists: map[string]string{
				"modes":                "mode",
				"fan_modes":            "fan_mode",
				"swing_modes":          "swing_mode",
				"vertical_swing_modes": "vertical_swing_mode",
			},
			Static: map[string]any{
				"temperature_unit": "C",
				"temp_step":        0.5,
				"precision":        0.5,
			},
		},
		{
			Key:      "light",
			Platform: "switch",
			Name:     "Display Light",
			Bindings: []discovery.Binding{{Property: "light"}},
		},
		{
			Key:      "energy",
			Platform: "sensor",
			Name:     "Energy Consumption",
			Bindings: []discovery.Binding{{Property: "energy_consumption"}},
		},
	},
}

func declareLGRAC056905WW() []field.Descriptor {
	return []field.Descriptor{
		{
			ID:     LGRegCurrentTemperature,
			Name:   "current_temperature",
			Access: field.AccessRead,
			Read:   field.Halves.Read,
			Meta:   field.Meta{Unit: "°C", DeviceClass: "temperature"},
		},
		{
			ID:     LGRegPower,
			Name:   "power",
			Access: field.AccessWrite,
			Read:   field.Switch{}.Read,
			Write:  field.Switch{}.Write,
			Attach: field.AttachBy(func(raw int) []field.ID {
				if raw != 0 {
					return []field.ID{LGRegMode, LGRegFanMode}
				}
				return []field.ID{LGRegMode}
			}),
			Callback: func(ctx field.CallbackContext, _ field.Value) error {
				return ctx.Reprocess(LGRegMode)
			},
		},
		{
			ID:     LGRegMode,
			Name:   "mode",
			Read:   readLGMode,
			Write:  writeLGMode,
			Attach: field.Attach(LGRegFanMode, LGRegTemperature),
			Meta: field.Meta{
				Options: []string{ModeOff, "cool", "dry", "fan_only", "heat", "auto"},
			},
		},
		{
			ID:     LGRegFanMode,
			Name:   "fan_mode",
			Read:   lgFanModes.Read,
			Write:  lgFanModes.Write,
			Attach: field.Attach(LGRegTemperature),
			Meta: field.Meta{
				Options: []string{"auto", "very low", "low", "medium", "high", "very high"},
			},
		},
		{
			ID:    LGRegTemperature,
			Name:  "temperature",
			Read:  field.Halves.Read,
			Write: field.Halves.Write,
			Meta:  field.Meta{Unit: "°C"},
		},
		{
			ID:     LGRegVerticalSwing,
			Name:   "vertical_swing_mode",
			Read:   lgVerticalSwing.Read,
			Write:  lgVerticalSwing.Write,
			Attach: field.Attach(LGRegMode, LGRegFanMode),
			Meta: field.Meta{
				Options: []string{"1", "2", "3", "4", "5", "6", "on", "off"},
			},
		},
		{
			ID:     LGRegSwing,
			Name:   "swing_mode",
			Read:   lgSwing.Read,
			Write:  lgSwing.Write,
			Attach: field.Attach(LGRegMode, LGRegFanMode),
			Meta: field.Meta{
				Options: []string{"1", "2", "3", "4", "5", "1-3", "3-5", "on", "off"},
			},
		},
		{
			ID:    LGRegLight,
			Name:  "light",
			Read:  readLGLight,
			Write: field.Switch{}.Write,
		},
		{
			ID:     LGRegEnergy,
			Name:   "energy_consumption",
			Access: field.AccessRead,
			Meta: field.Meta{
				Unit:        "Wh",
				DeviceClass: "energy",
				StateClass:  "total_increasing",
			},
		},
	}
}

// readLGMode reports "off" while the power register is 0.
func readLGMode(raw int, s field.Snapshot) (field.Value, error) {
	if power, ok := s.Raw(LGRegPower); ok && power == 0 {
		return ModeOff, nil
	}
	return lgModes.Decode(raw), nil
}

// writeLGMode turns "off" into a power-off command and leaves the mode
// register alone.
func writeLGMode(ctx field.WriteContext, v field.Value) (int, bool, error) {
	if field.ToString(v) == ModeOff {
		return 0, false, ctx.SetProperty("power", field.Off)
	}
	return lgModes.Write(ctx, v)
}

// readLGLight only treats exactly 1 as on.
func readLGLight(raw int, _ field.Snapshot) (field.Value, error) {
	if raw == 1 {
		return field.On, nil
	}
	return field.Off, nil
}
