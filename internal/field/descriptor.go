package field

import "fmt"

// ID is a register address, unique within one device.
type ID uint16

// String renders the id the way appliance documentation does (0x1f9).
func (id ID) String() string {
	return fmt.Sprintf("0x%03x", uint16(id))
}

// Value is a semantic property value.
//
// Transforms produce string, float64, int or nil. A nil Value means the raw
// register holds something the field cannot name; it is published as
// "unknown" rather than treated as an error.
type Value = any

// Access controls which directions a field participates in.
// The zero value means read-write.
type Access uint8

// Access flags.
const (
	AccessRead Access = 1 << iota
	AccessWrite

	AccessReadWrite = AccessRead | AccessWrite
)

// Snapshot is a read-only view of a device's register cache.
type Snapshot interface {
	// Raw returns the cached raw value of id and whether it is known.
	Raw(id ID) (int, bool)
}

// WriteContext is handed to write transforms.
//
// SetProperty runs a complete nested write (transform, dispatch, cache
// update and cascade) before returning.
type WriteContext interface {
	Snapshot
	SetProperty(name string, v Value) error
}

// CallbackContext is handed to read callbacks.
//
// Reprocess re-runs the inbound path for id using its cached raw value,
// re-deriving that field without new telemetry.
type CallbackContext interface {
	Snapshot
	Reprocess(id ID) error
}

// ReadFunc converts a raw register value into a semantic value.
type ReadFunc func(raw int, s Snapshot) (Value, error)

// WriteFunc converts a semantic value into a raw register value.
// write=false means nothing is sent to the device.
type WriteFunc func(ctx WriteContext, v Value) (raw int, write bool, err error)

// CallbackFunc runs after a successful inbound update of its field.
type CallbackFunc func(ctx CallbackContext, v Value) error

// AttachFunc computes dependent registers from the raw value just written.
type AttachFunc func(raw int) []ID

// Attachment lists the registers whose semantic values depend on a field
// and must be re-derived after it is written. Either a static list or a
// function of the written raw value.
type Attachment struct {
	static  []ID
	dynamic AttachFunc
}

// Attach returns a static attachment.
func Attach(ids ...ID) Attachment {
	return Attachment{static: ids}
}

// AttachBy returns an attachment computed from the written raw value.
func AttachBy(fn AttachFunc) Attachment {
	return Attachment{dynamic: fn}
}

// IsDynamic reports whether the attachment depends on the raw value.
func (a Attachment) IsDynamic() bool {
	return a.dynamic != nil
}

// Resolve returns the dependent registers for raw. For a dynamic
// attachment with no known raw value (known=false) it returns nil.
func (a Attachment) Resolve(raw int, known bool) []ID {
	if a.dynamic != nil {
		if !known {
			return nil
		}
		return a.dynamic(raw)
	}
	return a.static
}

// Meta is descriptive data consumed by the discovery document.
type Meta struct {
	// Unit is the unit of measurement (e.g. "Wh", "°C").
	Unit string

	// Options is the enumerated value domain, in display order.
	Options []string

	// DeviceClass and StateClass are passed through to the hub.
	DeviceClass string
	StateClass  string
}

// Descriptor is the static declaration of one semantic field.
type Descriptor struct {
	// ID is the register address.
	ID ID

	// Name is the semantic property name.
	Name string

	// Access defaults to read-write.
	Access Access

	// Read converts raw to semantic. Nil means identity.
	Read ReadFunc

	// Write converts semantic to raw. Nil accepts integer-like values as-is.
	Write WriteFunc

	// Attach lists registers re-derived after a write.
	Attach Attachment

	// Callback runs after the field is updated from telemetry.
	Callback CallbackFunc

	// Meta feeds discovery.
	Meta Meta
}

// Readable reports whether the field is published.
func (d Descriptor) Readable() bool {
	return d.Access == 0 || d.Access&AccessRead != 0
}

// Writable reports whether the field accepts commands.
func (d Descriptor) Writable() bool {
	return d.Access == 0 || d.Access&AccessWrite != 0
}

// Decode applies the read transform.
func (d Descriptor) Decode(raw int, s Snapshot) (Value, error) {
	if d.Read == nil {
		return raw, nil
	}
	return d.Read(raw, s)
}

// Encode applies the write transform.
func (d Descriptor) Encode(ctx WriteContext, v Value) (int, bool, error) {
	if d.Write == nil {
		raw, err := ToInt(v)
		if err != nil {
			return 0, false, err
		}
		return raw, true, nil
	}
	return d.Write(ctx, v)
}
