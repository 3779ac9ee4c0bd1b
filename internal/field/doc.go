// Package field declares how raw appliance registers map to semantic
// properties.
//
// A device model is a list of Descriptors. Each Descriptor binds one
// register id to one property name and carries the transforms used to move
// values between the two domains.
//
// # Components
//
//   - Descriptor: translation rules for one register (read/write transforms,
//     dependent registers, read callback, discovery metadata)
//   - Registry: descriptors indexed by id and by name, sealed after
//     device construction
//   - Cache: last known raw value per register, including registers no
//     descriptor covers
//
// # Transforms
//
// Transforms are plain functions. They never capture device state; instead
// they receive a read-only Snapshot of the register cache, so a field can
// derive its value from other registers:
//
//	mode := field.Descriptor{
//	    ID:   0x1f9,
//	    Name: "mode",
//	    Read: func(raw int, s field.Snapshot) (field.Value, error) {
//	        if power, ok := s.Raw(0x1f7); ok && power == 0 {
//	            return "off", nil
//	        }
//	        return modes.Decode(raw), nil
//	    },
//	}
//
// Helpers cover the common shapes: Enum for lookup tables, Scaled for
// fixed-point numbers and Switch for ON/OFF registers.
//
// # Thread Safety
//
// A sealed Registry is immutable and safe for concurrent reads. Cache is
// NOT safe for concurrent use; it belongs to exactly one device's
// serialized mutation context.
package field
