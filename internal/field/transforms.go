package field

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Semantic values for two-state registers.
const (
	On  = "ON"
	Off = "OFF"
)

// Enum is a bidirectional lookup table between raw values and names.
//
// Raw values missing from the table decode to nil. Names missing from the
// table fail to encode with ErrUnknownValue.
type Enum struct {
	names map[int]string
	raws  map[string]int
	order []string
}

// NewEnum builds an Enum. Options() lists names by ascending raw value.
func NewEnum(table map[int]string) Enum {
	e := Enum{
		names: make(map[int]string, len(table)),
		raws:  make(map[string]int, len(table)),
	}
	raws := make([]int, 0, len(table))
	for raw, name := range table {
		e.names[raw] = name
		e.raws[name] = raw
		raws = append(raws, raw)
	}
	sort.Ints(raws)
	for _, raw := range raws {
		e.order = append(e.order, table[raw])
	}
	return e
}

// Decode returns the name for raw, or nil if raw is not in the table.
func (e Enum) Decode(raw int) Value {
	name, ok := e.names[raw]
	if !ok {
		return nil
	}
	return name
}

// Encode returns the raw value for a name.
func (e Enum) Encode(v Value) (int, error) {
	name := ToString(v)
	raw, ok := e.raws[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownValue, name)
	}
	return raw, nil
}

// Options returns the names ordered by raw value.
func (e Enum) Options() []string {
	return append([]string(nil), e.order...)
}

// Read adapts Decode to a ReadFunc.
func (e Enum) Read(raw int, _ Snapshot) (Value, error) {
	return e.Decode(raw), nil
}

// Write adapts Encode to a WriteFunc.
func (e Enum) Write(_ WriteContext, v Value) (int, bool, error) {
	raw, err := e.Encode(v)
	if err != nil {
		return 0, false, err
	}
	return raw, true, nil
}

// Scaled is a fixed-point number stored as value*Factor.
type Scaled struct {
	Factor float64
}

// Read returns raw/Factor.
func (s Scaled) Read(raw int, _ Snapshot) (Value, error) {
	return float64(raw) / s.Factor, nil
}

// Write returns round(v*Factor).
func (s Scaled) Write(_ WriteContext, v Value) (int, bool, error) {
	f, err := ToFloat(v)
	if err != nil {
		return 0, false, err
	}
	raw, err := toRaw(math.Round(f*s.Factor), v)
	if err != nil {
		return 0, false, err
	}
	return raw, true, nil
}

// Halves is the common half-unit encoding (21.5 °C is stored as 43).
var Halves = Scaled{Factor: 2}

// Switch maps ON to 1 and anything else to 0.
type Switch struct{}

// Read returns ON for any non-zero raw value.
func (Switch) Read(raw int, _ Snapshot) (Value, error) {
	if raw != 0 {
		return On, nil
	}
	return Off, nil
}

// Write accepts ON/OFF in any case, booleans and 0/1.
func (Switch) Write(_ WriteContext, v Value) (int, bool, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true, nil
		}
		return 0, true, nil
	case string:
		if strings.EqualFold(strings.TrimSpace(t), On) {
			return 1, true, nil
		}
		return 0, true, nil
	}
	n, err := ToInt(v)
	if err != nil {
		return 0, false, err
	}
	if n != 0 {
		return 1, true, nil
	}
	return 0, true, nil
}

// ToString renders a semantic value as text.
func ToString(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// ToFloat converts numbers and numeric strings to a finite float64.
// NaN and infinities are rejected.
func ToFloat(v Value) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, t)
		}
	case []byte:
		return ToFloat(string(t))
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidValue, v)
	}
	return f, nil
}

// ToInt converts integer-like values to a raw register value. Fractional
// input and values outside the signed 32-bit range are rejected.
func ToInt(v Value) (int, error) {
	f, err := ToFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v)
	}
	return toRaw(f, v)
}

func toRaw(f float64, v Value) (int, error) {
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v is out of range", ErrInvalidValue, v)
	}
	return int(f), nil
}
