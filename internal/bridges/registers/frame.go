package registers

import (
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// Register is one register value inside a frame.
type Register struct {
	ID    uint16 `cbor:"1,keyasint"`
	Value int64  `cbor:"2,keyasint"`
}

// Frame is the unit carried on register topics.
type Frame struct {
	// Seq is a per-sender counter for tracing; receivers do not reorder.
	Seq uint32 `cbor:"1,keyasint,omitempty"`

	// Registers are applied in order.
	Registers []Register `cbor:"2,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("registers: creating CBOR encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("registers: creating CBOR decoder mode: %v", err))
	}
}

// EncodeFrame validates and encodes a frame.
func EncodeFrame(f Frame) ([]byte, error) {
	if len(f.Registers) == 0 {
		return nil, ErrEmptyFrame
	}
	if err := checkRange(f.Registers); err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return data, nil
}

// DecodeFrame decodes and validates a frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := decMode.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if len(f.Registers) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	if err := checkRange(f.Registers); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// checkRange rejects values outside the device's signed 32-bit range.
func checkRange(regs []Register) error {
	for _, r := range regs {
		if r.Value < math.MinInt32 || r.Value > math.MaxInt32 {
			return fmt.Errorf("%w: register %s = %d", ErrRegisterRange, field.ID(r.ID), r.Value)
		}
	}
	return nil
}
