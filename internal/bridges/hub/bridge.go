package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/discovery"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/models"
)

const (
	// DefaultCommandQueueSize bounds commands waiting for the worker.
	DefaultCommandQueueSize = 32

	// DefaultCommandTimeout bounds one SetProperty call.
	DefaultCommandTimeout = 5 * time.Second

	resyncTimeout = 30 * time.Second
)

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishAsync(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Device is what the bridge needs to know about an appliance.
// *device.Device satisfies it.
type Device interface {
	ID() string
	Name() string
	Model() models.Model
	Registry() *field.Registry
}

// Commander applies hub commands. *device.Manager satisfies it.
type Commander interface {
	SetProperty(ctx context.Context, deviceID, name string, v field.Value) error
	Republish(ctx context.Context) error
}

// Logger is the logging interface used by the bridge.
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

// Options configures a Bridge.
type Options struct {
	Client    MQTTClient
	Topics    mqtt.Topics
	Commander Commander
	QoS       byte

	// Discovery enables discovery documents under DiscoveryPrefix.
	Discovery       bool
	DiscoveryPrefix string

	// AvailabilityTopic is referenced by discovery documents so the hub
	// marks entities unavailable when the bridge goes away.
	AvailabilityTopic string
	Origin            discovery.Origin

	QueueSize      int
	CommandTimeout time.Duration
	Logger         Logger
}

// CommandStats counts processed hub commands.
type CommandStats struct {
	Applied uint64 `json:"applied"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Bridge publishes semantic properties to the hub and applies its commands.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Commands are applied one at a time in arrival order.
type Bridge struct {
	client    MQTTClient
	topics    mqtt.Topics
	commander Commander
	qos       byte
	opts      Options
	timeout   time.Duration
	logger    Logger
	newID     func() string

	devices   map[string]Device
	devicesMu sync.RWMutex

	jobs     chan func()
	done     chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once

	applied atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

type command struct {
	id       string
	deviceID string
	property string
	payload  string
	value    field.Value
}

// New creates a bridge. Devices are added with AddDevice before Start.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, errors.New("hub: client is required")
	}
	if opts.Commander == nil {
		return nil, errors.New("hub: commander is required")
	}
	if opts.Topics.Base == "" {
		return nil, errors.New("hub: base topic is required")
	}
	if opts.Discovery && opts.DiscoveryPrefix == "" {
		return nil, errors.New("hub: discovery prefix is required when discovery is enabled")
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultCommandQueueSize
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Bridge{
		client:    opts.Client,
		topics:    opts.Topics,
		commander: opts.Commander,
		qos:       opts.QoS,
		opts:      opts,
		timeout:   timeout,
		logger:    logger,
		newID:     uuid.NewString,
		devices:   make(map[string]Device),
		jobs:      make(chan func(), queueSize),
		done:      make(chan struct{}),
	}, nil
}

// AddDevice makes a device visible to the hub.
func (b *Bridge) AddDevice(d Device) {
	b.devicesMu.Lock()
	b.devices[d.ID()] = d
	b.devicesMu.Unlock()
}

func (b *Bridge) device(id string) (Device, bool) {
	b.devicesMu.RLock()
	defer b.devicesMu.RUnlock()
	d, ok := b.devices[id]
	return d, ok
}

func (b *Bridge) deviceList() []Device {
	b.devicesMu.RLock()
	defer b.devicesMu.RUnlock()
	out := make([]Device, 0, len(b.devices))
	for _, d := range b.devices {
		out = append(out, d)
	}
	return out
}

// Start publishes discovery, subscribes to each device's command topics
// and starts the command worker.
func (b *Bridge) Start() error {
	if !b.started.CompareAndSwap(false, true) {
		return errors.New("hub: already started")
	}

	b.wg.Add(1)
	go b.worker()

	for _, d := range b.deviceList() {
		if err := b.PublishDiscovery(d); err != nil {
			return err
		}
		if err := b.client.Subscribe(b.topics.DeviceCommands(d.ID()), b.qos, b.handleCommand); err != nil {
			return fmt.Errorf("subscribing commands for %s: %w", d.ID(), err)
		}
	}
	b.logger.Info("hub bridge started", "devices", len(b.deviceList()), "discovery", b.opts.Discovery)
	return nil
}

// Stop unsubscribes, lets queued commands finish and ends the worker.
// Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		for _, d := range b.deviceList() {
			if err := b.client.Unsubscribe(b.topics.DeviceCommands(d.ID())); err != nil {
				b.logger.Debug("unsubscribe failed", "device_id", d.ID(), "error", err)
			}
		}
		close(b.done)
		b.wg.Wait()
	})
}

// Publish sends a property value to the hub, retained so the hub sees the
// last value after a restart. It implements engine.Publisher.
func (b *Bridge) Publish(deviceID, property string, v field.Value) error {
	return b.client.PublishAsync(b.topics.PropertyState(deviceID, property), FormatValue(v), b.qos, true)
}

// PublishDiscovery publishes one device's discovery document. It does
// nothing when discovery is disabled.
func (b *Bridge) PublishDiscovery(d Device) error {
	if !b.opts.Discovery {
		return nil
	}
	m := d.Model()
	doc, err := discovery.Build(discovery.Params{
		DeviceID:          d.ID(),
		DeviceName:        d.Name(),
		Manufacturer:      m.Manufacturer,
		Model:             m.ID,
		BaseTopic:         b.topics.DeviceBase(d.ID()),
		AvailabilityTopic: b.opts.AvailabilityTopic,
		Origin:            b.opts.Origin,
	}, d.Registry(), m.Components)
	if err != nil {
		return fmt.Errorf("building discovery for %s: %w", d.ID(), err)
	}
	payload, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("marshalling discovery for %s: %w", d.ID(), err)
	}
	if err := b.client.Publish(discovery.Topic(b.opts.DiscoveryPrefix, d.ID()), payload, b.qos, true); err != nil {
		return fmt.Errorf("publishing discovery for %s: %w", d.ID(), err)
	}
	return nil
}

// Resync queues a discovery refresh and a full republish. It is meant for
// the MQTT client's on-connect callback and never blocks.
func (b *Bridge) Resync() {
	queued := b.submit(func() {
		for _, d := range b.deviceList() {
			if err := b.PublishDiscovery(d); err != nil {
				b.logger.Warn("rediscovery failed", "device_id", d.ID(), "error", err)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
		defer cancel()
		if err := b.commander.Republish(ctx); err != nil {
			b.logger.Warn("republish after reconnect failed", "error", err)
			return
		}
		b.logger.Info("hub state resynced")
	})
	if !queued {
		b.logger.Warn("resync skipped: command queue full or bridge stopped")
	}
}

// Stats returns command counters.
func (b *Bridge) Stats() CommandStats {
	return CommandStats{
		Applied: b.applied.Load(),
		Failed:  b.failed.Load(),
		Dropped: b.dropped.Load(),
	}
}

// handleCommand runs on the MQTT client's goroutine. It only parses and
// queues.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	deviceID, property, ok := b.topics.ParseCommand(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}
	if _, known := b.device(deviceID); !known {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	cmd := command{
		id:       b.newID(),
		deviceID: deviceID,
		property: property,
		payload:  string(payload),
		value:    ParseValue(payload),
	}
	if !b.submit(func() { b.apply(cmd) }) {
		b.dropped.Add(1)
		b.publishAck(cmd, AckFailed, ErrCommandQueueFull)
		return ErrCommandQueueFull
	}
	return nil
}

func (b *Bridge) submit(job func()) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.jobs <- job:
		return true
	default:
		return false
	}
}

func (b *Bridge) apply(cmd command) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err := b.commander.SetProperty(ctx, cmd.deviceID, cmd.property, cmd.value)
	if err != nil {
		b.failed.Add(1)
		b.logger.Warn("hub command failed",
			"command_id", cmd.id,
			"device_id", cmd.deviceID,
			"property", cmd.property,
			"value", cmd.payload,
			"error", err,
		)
		b.publishAck(cmd, AckFailed, err)
		return
	}
	b.applied.Add(1)
	b.logger.Debug("hub command applied",
		"command_id", cmd.id,
		"device_id", cmd.deviceID,
		"property", cmd.property,
	)
	b.publishAck(cmd, AckAccepted, nil)
}

func (b *Bridge) publishAck(cmd command, status AckStatus, cause error) {
	ack := AckMessage{
		CommandID: cmd.id,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.deviceID,
		Property:  cmd.property,
		Value:     cmd.payload,
		Status:    status,
	}
	if cause != nil {
		ack.Error = cause.Error()
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("marshalling ack failed", "error", err)
		return
	}
	if err := b.client.PublishAsync(b.topics.PropertyAck(cmd.deviceID, cmd.property), payload, b.qos, false); err != nil {
		b.logger.Debug("publishing ack failed", "command_id", cmd.id, "error", err)
	}
}

// worker applies queued jobs until Stop, then drains what is left.
func (b *Bridge) worker() {
	defer b.wg.Done()
	for {
		select {
		case job := <-b.jobs:
			job()
		case <-b.done:
			for {
				select {
				case job := <-b.jobs:
					job()
				default:
					return
				}
			}
		}
	}
}
