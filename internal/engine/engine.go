package engine

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// DefaultMaxCascadeDepth bounds nested writes and dependent re-derivation.
const DefaultMaxCascadeDepth = 4

// Publisher receives semantic values for the automation hub.
type Publisher interface {
	Publish(deviceID, property string, v field.Value) error
}

// RawSender forwards raw register writes to the device. Implementations
// must not wait for the device to confirm.
type RawSender interface {
	SendRaw(deviceID string, id field.ID, raw int) error
}

// Observer is told about transform failures.
type Observer interface {
	TransformFailed(deviceID, property string, err error)
}

// Logger is the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures an Engine.
type Options struct {
	// DeviceID identifies the device in every publish and raw write.
	DeviceID string

	// Registry holds the device's sealed field declarations. Required.
	Registry *field.Registry

	// Cache is the device's raw register cache. A fresh cache is created if nil.
	Cache *field.Cache

	// Publisher receives semantic values. Optional.
	Publisher Publisher

	// Sender receives raw writes. Optional.
	Sender RawSender

	// Observer receives transform failures. Optional.
	Observer Observer

	// MaxCascadeDepth overrides DefaultMaxCascadeDepth when positive.
	MaxCascadeDepth int

	// Logger is optional.
	Logger Logger
}

// Engine translates between one device's raw registers and its semantic
// properties.
//
// Thread Safety:
//   - NOT safe for concurrent use. All calls for a device must come from
//     that device's serialized mutation context.
type Engine struct {
	deviceID  string
	registry  *field.Registry
	cache     *field.Cache
	publisher Publisher
	sender    RawSender
	observer  Observer
	logger    Logger
	maxDepth  int

	// published holds the last value published per property.
	published map[string]field.Value
	failures  uint64
}

// New creates an Engine.
//
// Returns ErrNoRegistry if opts.Registry is nil.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}

	e := &Engine{
		deviceID:  opts.DeviceID,
		registry:  opts.Registry,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		sender:    opts.Sender,
		observer:  opts.Observer,
		logger:    opts.Logger,
		maxDepth:  opts.MaxCascadeDepth,
		published: make(map[string]field.Value),
	}
	if e.cache == nil {
		e.cache = field.NewCache()
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	if e.maxDepth <= 0 {
		e.maxDepth = DefaultMaxCascadeDepth
	}
	return e, nil
}

// DeviceID returns the device this engine serves.
func (e *Engine) DeviceID() string {
	return e.deviceID
}

// Registry returns the field registry.
func (e *Engine) Registry() *field.Registry {
	return e.registry
}

// Cache returns the raw register cache.
func (e *Engine) Cache() *field.Cache {
	return e.cache
}

// Properties returns a copy of the last published value per property.
func (e *Engine) Properties() map[string]field.Value {
	out := make(map[string]field.Value, len(e.published))
	for k, v := range e.published {
		out[k] = v
	}
	return out
}

// TransformFailures returns how many transform failures have been observed.
func (e *Engine) TransformFailures() uint64 {
	return e.failures
}

// OnRawUpdate handles a raw value reported by the device.
//
// The value is always cached. Unregistered registers stop there without
// error. Registered readable fields are decoded and published, then the
// field's read callback runs. A non-readable field with a callback is
// decoded for the callback but never published.
//
// Transform failures are reported to the observer and do not fail the call;
// the field keeps its last published value.
//
// Returns:
//   - ErrCascadeDepthExceeded if a callback reprocesses too deeply
func (e *Engine) OnRawUpdate(id field.ID, raw int) error {
	return e.onRawUpdate(id, raw, 0)
}

// SetProperty writes a semantic value to the device.
//
// Returns:
//   - ErrUnknownProperty if name is not registered
//   - ErrNotWritable if the field is read-only
//   - ErrTransformFailure if the write transform rejects the value
//   - ErrCascadeDepthExceeded if nested writes or dependent re-derivation
//     go deeper than the configured limit
func (e *Engine) SetProperty(name string, v field.Value) error {
	return e.setProperty(name, v, 0)
}

// Reprocess re-derives and republishes one field from its cached raw value.
// Registers with no cached value are skipped.
func (e *Engine) Reprocess(id field.ID) error {
	raw, ok := e.cache.Get(id)
	if !ok {
		return nil
	}
	return e.onRawUpdate(id, raw, 0)
}

// ReprocessAll re-derives every registered field with a cached value, in
// registration order. Used after the cache is restored from storage.
func (e *Engine) ReprocessAll() error {
	var errs []error
	for _, d := range e.registry.Descriptors() {
		if err := e.Reprocess(d.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) onRawUpdate(id field.ID, raw int, depth int) error {
	if err := e.checkDepth(depth); err != nil {
		return err
	}

	e.cache.Set(id, raw)

	d, ok := e.registry.ByID(id)
	if !ok {
		return nil
	}
	readable := d.Readable()
	if !readable && d.Callback == nil {
		return nil
	}

	v, err := d.Decode(raw, e.cache)
	if err != nil {
		e.transformFailed(d, fmt.Errorf("%w: read %s: %w", ErrTransformFailure, d.Name, err))
		return nil
	}

	if readable {
		e.publish(d.Name, v)
	}

	if d.Callback == nil {
		return nil
	}
	if err := d.Callback(&callbackContext{engine: e, depth: depth}, v); err != nil {
		if errors.Is(err, ErrCascadeDepthExceeded) {
			return err
		}
		e.transformFailed(d, fmt.Errorf("%w: callback %s: %w", ErrTransformFailure, d.Name, err))
	}
	return nil
}

func (e *Engine) setProperty(name string, v field.Value, depth int) error {
	if err := e.checkDepth(depth); err != nil {
		return err
	}

	d, ok := e.registry.ByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if !d.Writable() {
		return fmt.Errorf("%w: %q", ErrNotWritable, name)
	}

	raw, write, err := d.Encode(&writeContext{engine: e, depth: depth}, v)
	if err != nil {
		if isEngineError(err) {
			return err
		}
		err = fmt.Errorf("%w: write %s=%v: %w", ErrTransformFailure, name, v, err)
		e.transformFailed(d, err)
		return err
	}

	known := write
	if write {
		e.sendRaw(d.ID, raw)
		e.cache.Set(d.ID, raw)
	} else {
		raw, known = e.cache.Get(d.ID)
	}

	return e.cascade(d.Attach.Resolve(raw, known), depth+1)
}

func (e *Engine) checkDepth(depth int) error {
	if depth > e.maxDepth {
		return fmt.Errorf("%w: device %s, limit %d", ErrCascadeDepthExceeded, e.deviceID, e.maxDepth)
	}
	return nil
}

func (e *Engine) publish(name string, v field.Value) {
	e.published[name] = v
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(e.deviceID, name, v); err != nil {
		e.logger.Error("publishing property failed",
			"device_id", e.deviceID,
			"property", name,
			"error", err,
		)
	}
}

func (e *Engine) sendRaw(id field.ID, raw int) {
	if e.sender == nil {
		return
	}
	if err := e.sender.SendRaw(e.deviceID, id, raw); err != nil {
		e.logger.Error("sending raw write failed",
			"device_id", e.deviceID,
			"register", id.String(),
			"raw", raw,
			"error", err,
		)
	}
}

func (e *Engine) transformFailed(d field.Descriptor, err error) {
	e.failures++
	e.logger.Warn("transform failed",
		"device_id", e.deviceID,
		"property", d.Name,
		"register", d.ID.String(),
		"error", err,
	)
	if e.observer != nil {
		e.observer.TransformFailed(e.deviceID, d.Name, err)
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
