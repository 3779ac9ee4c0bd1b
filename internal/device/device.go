package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/engine"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/models"
)

// Defaults applied by New.
const (
	DefaultQueueSize       = 64
	DefaultPersistInterval = 10 * time.Second

	persistTimeout = 5 * time.Second
)

// Logger defines the logging interface used by devices and the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Device.
type Options struct {
	// ID is the device's unique identifier and topic segment. Required.
	ID string

	// Name is shown on the hub. Defaults to the model name.
	Name string

	// Model supplies field declarations and hub components. Required.
	Model models.Model

	// Publisher receives semantic values. Use FanOut for several.
	Publisher engine.Publisher

	// Sender forwards raw writes to the appliance.
	Sender engine.RawSender

	// Observer is told about transform failures in addition to the
	// device's own counter. Optional.
	Observer engine.Observer

	// Repository persists the register cache. Optional.
	Repository SnapshotRepository

	// MaxCascadeDepth overrides engine.DefaultMaxCascadeDepth when positive.
	MaxCascadeDepth int

	// QueueSize bounds pending operations. Defaults to DefaultQueueSize.
	QueueSize int

	// PersistInterval is how often a dirty cache is saved. Defaults to
	// DefaultPersistInterval.
	PersistInterval time.Duration

	// Logger is optional.
	Logger Logger
}

// State is a consistent view of one device taken on its actor goroutine.
type State struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Model             string                 `json:"model"`
	Registers         map[field.ID]int       `json:"-"`
	Properties        map[string]field.Value `json:"properties"`
	TransformFailures uint64                 `json:"transform_failures"`
	QueueDepth        int                    `json:"queue_depth"`
}

// Device is one appliance with its own serialized mutation context.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - The engine and cache are only touched from the actor goroutine.
type Device struct {
	id       string
	name     string
	model    models.Model
	registry *field.Registry
	engine   *engine.Engine
	observer engine.Observer
	repo     SnapshotRepository
	persist  time.Duration
	logger   Logger

	ops      chan func()
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once

	failures atomic.Uint64
}

// New builds a device and its engine. The device does nothing until Start.
//
// Returns ErrInvalidDevice when ID or Model is missing, or the model's
// declarations fail to register.
func New(opts Options) (*Device, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if opts.Model.Declare == nil {
		return nil, fmt.Errorf("%w: %s: model is required", ErrInvalidDevice, opts.ID)
	}

	reg, err := opts.Model.Registry()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDevice, opts.ID, err)
	}

	depth := opts.MaxCascadeDepth
	if depth <= 0 {
		depth = engine.DefaultMaxCascadeDepth
	}
	if need := opts.Model.RequiredCascadeDepth(reg); depth < need {
		return nil, fmt.Errorf("%w: %s: cascade depth %d is below the %d model %s needs",
			ErrInvalidDevice, opts.ID, depth, need, opts.Model.ID)
	}

	d := &Device{
		id:       opts.ID,
		name:     opts.Name,
		model:    opts.Model,
		registry: reg,
		observer: opts.Observer,
		repo:     opts.Repository,
		persist:  opts.PersistInterval,
		logger:   opts.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if d.name == "" {
		d.name = opts.Model.Name
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	if d.persist <= 0 {
		d.persist = DefaultPersistInterval
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d.ops = make(chan func(), queueSize)

	d.engine, err = engine.New(engine.Options{
		DeviceID:        opts.ID,
		Registry:        reg,
		Publisher:       opts.Publisher,
		Sender:          opts.Sender,
		Observer:        (*failureCounter)(d),
		MaxCascadeDepth: depth,
		Logger:          d.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDevice, opts.ID, err)
	}

	for _, cycle := range reg.StaticCycles() {
		d.logger.Warn("static attach cycle; writes touching it will exceed the cascade depth",
			"device_id", d.id,
			"cycle", formatCycle(cycle),
		)
	}
	return d, nil
}

// ID returns the device identifier.
func (d *Device) ID() string { return d.id }

// Name returns the display name.
func (d *Device) Name() string { return d.name }

// Model returns the appliance model.
func (d *Device) Model() models.Model { return d.model }

// Registry returns the sealed field registry. It is immutable and safe to
// share.
func (d *Device) Registry() *field.Registry { return d.registry }

// TransformFailures returns the number of transform failures so far.
func (d *Device) TransformFailures() uint64 { return d.failures.Load() }

// QueueDepth returns the number of operations waiting.
func (d *Device) QueueDepth() int { return len(d.ops) }

// Start restores the persisted register snapshot (if any), re-derives
// every property from it and starts the actor goroutine.
//
// A failed restore is logged and the device starts with an empty cache.
func (d *Device) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	d.restore(ctx)
	go d.run()
	return nil
}

// Stop drains queued operations, saves a dirty cache and ends the actor.
// It waits until the actor exits or ctx is done.
func (d *Device) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stop) })
	if !d.started.Load() {
		return nil
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping device %s: %w", d.id, ctx.Err())
	}
}

// DeliverRaw queues a register value reported by the appliance and returns
// once it is queued. It waits for space when the queue is full.
func (d *Device) DeliverRaw(id field.ID, raw int) error {
	return d.enqueue(context.Background(), func() {
		if err := d.engine.OnRawUpdate(id, raw); err != nil {
			d.logger.Warn("processing register update failed",
				"device_id", d.id,
				"register", id.String(),
				"raw", raw,
				"error", err,
			)
		}
	})
}

// SetProperty queues a semantic write and waits for its result.
//
// Returns the engine's error (ErrUnknownProperty, ErrNotWritable,
// ErrTransformFailure, ErrCascadeDepthExceeded), ErrDeviceStopped, or
// ctx's error if the caller gives up first. A write abandoned by the
// caller still runs.
func (d *Device) SetProperty(ctx context.Context, name string, v field.Value) error {
	result := make(chan error, 1)
	if err := d.enqueue(ctx, func() {
		result <- d.engine.SetProperty(name, v)
	}); err != nil {
		return err
	}
	return d.await(ctx, result)
}

// Republish re-derives and republishes every cached property. Bridges call
// it after a broker reconnect.
func (d *Device) Republish(ctx context.Context) error {
	result := make(chan error, 1)
	if err := d.enqueue(ctx, func() {
		result <- d.engine.ReprocessAll()
	}); err != nil {
		return err
	}
	return d.await(ctx, result)
}

// Snapshot returns the device's current registers and properties.
func (d *Device) Snapshot(ctx context.Context) (State, error) {
	result := make(chan State, 1)
	if err := d.enqueue(ctx, func() {
		result <- d.state()
	}); err != nil {
		return State{}, err
	}

	select {
	case s := <-result:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	case <-d.done:
		select {
		case s := <-result:
			return s, nil
		default:
			return State{}, ErrDeviceStopped
		}
	}
}

func (d *Device) state() State {
	return State{
		ID:                d.id,
		Name:              d.name,
		Model:             d.model.ID,
		Registers:         d.engine.Cache().Snapshot(),
		Properties:        d.engine.Properties(),
		TransformFailures: d.failures.Load(),
		QueueDepth:        len(d.ops),
	}
}

func (d *Device) enqueue(ctx context.Context, op func()) error {
	select {
	case <-d.stop:
		return fmt.Errorf("%w: %s", ErrDeviceStopped, d.id)
	default:
	}

	select {
	case d.ops <- op:
		return nil
	case <-d.stop:
		return fmt.Errorf("%w: %s", ErrDeviceStopped, d.id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Device) await(ctx context.Context, result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		select {
		case err := <-result:
			return err
		default:
			return fmt.Errorf("%w: %s", ErrDeviceStopped, d.id)
		}
	}
}

// run is the actor loop.
func (d *Device) run() {
	defer close(d.done)

	var tick <-chan time.Time
	if d.repo != nil {
		ticker := time.NewTicker(d.persist)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case op := <-d.ops:
			op()
		case <-tick:
			d.save()
		case <-d.stop:
			d.drain()
			d.save()
			return
		}
	}
}

func (d *Device) drain() {
	for {
		select {
		case op := <-d.ops:
			op()
		default:
			return
		}
	}
}

// restore runs before the actor starts, so it may touch the engine directly.
func (d *Device) restore(ctx context.Context) {
	if d.repo == nil {
		return
	}
	regs, err := d.repo.LoadRegisters(ctx, d.id)
	if err != nil {
		d.logger.Error("loading register snapshot failed", "device_id", d.id, "error", err)
		return
	}
	if len(regs) == 0 {
		return
	}

	d.engine.Cache().Restore(regs)
	if err := d.engine.ReprocessAll(); err != nil {
		d.logger.Warn("re-deriving restored registers failed", "device_id", d.id, "error", err)
	}
	d.logger.Info("register snapshot restored", "device_id", d.id, "registers", len(regs))
}

func (d *Device) save() {
	cache := d.engine.Cache()
	if d.repo == nil || !cache.Dirty() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := d.repo.SaveRegisters(ctx, d.id, cache.Snapshot()); err != nil {
		d.logger.Error("saving register snapshot failed", "device_id", d.id, "error", err)
		return
	}
	cache.MarkClean()
}

// failureCounter is the engine's observer: it counts, then forwards.
type failureCounter Device

func (f *failureCounter) TransformFailed(deviceID, property string, err error) {
	d := (*Device)(f)
	d.failures.Add(1)
	if d.observer != nil {
		d.observer.TransformFailed(deviceID, property, err)
	}
}

func formatCycle(cycle []field.ID) string {
	s := ""
	for i, id := range cycle {
		if i > 0 {
			s += " -> "
		}
		s += id.String()
	}
	if len(cycle) > 0 {
		s += " -> " + cycle[0].String()
	}
	return s
}
