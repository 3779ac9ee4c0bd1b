// Package engine moves values between a device's raw register cache and
// its semantic property surface.
//
// # Inbound
//
// OnRawUpdate stores every raw value it receives, then, for registered
// and readable fields, decodes it against the current cache, publishes the
// semantic value and runs the field's read callback.
//
// # Outbound
//
// SetProperty encodes a semantic value, sends the raw value to the device
// without waiting for confirmation, stores it in the cache optimistically
// and cascades: every register named in the field's attachment is
// re-derived from its cached value and republished, and the cascade follows
// those registers' own attachments in turn.
//
// # Cascade Depth
//
// Nested writes, callback reprocessing and each cascade level all count
// toward one depth budget (DefaultMaxCascadeDepth unless configured).
// Exceeding it returns ErrCascadeDepthExceeded and stops propagation.
// Raw writes already sent are not rolled back.
//
// # Thread Safety
//
// Engine is NOT safe for concurrent use. Each device runs its engine
// inside a single serialized mutation context (see package device).
package engine
