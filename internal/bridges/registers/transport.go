package registers

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client the transport uses.
type MQTTClient interface {
	PublishAsync(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Sink receives inbound register values. *device.Manager satisfies it.
type Sink interface {
	DeliverRaw(deviceID string, id field.ID, raw int) error
}

// Logger is the logging interface used by the transport.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Transport.
type Options struct {
	Client MQTTClient
	Topics mqtt.Topics
	Sink   Sink
	QoS    byte
	Logger Logger
}

// Stats counts transport traffic.
type Stats struct {
	FramesIn     uint64 `json:"frames_in"`
	FramesOut    uint64 `json:"frames_out"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// Transport moves CBOR register frames between MQTT and the devices.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Transport struct {
	client MQTTClient
	topics mqtt.Topics
	sink   Sink
	qos    byte
	logger Logger

	seq          atomic.Uint32
	framesIn     atomic.Uint64
	framesOut    atomic.Uint64
	decodeErrors atomic.Uint64
}

// New creates a transport. Client is required; Sink is required before
// Start.
func New(opts Options) (*Transport, error) {
	if opts.Client == nil {
		return nil, errors.New("registers: MQTT client is required")
	}
	t := &Transport{
		client: opts.Client,
		topics: opts.Topics,
		sink:   opts.Sink,
		qos:    opts.QoS,
		logger: opts.Logger,
	}
	if t.logger == nil {
		t.logger = noopLogger{}
	}
	return t, nil
}

// SetSink sets the receiver of inbound frames. Call before Start.
func (t *Transport) SetSink(sink Sink) {
	t.sink = sink
}

// Start subscribes to every device's rx topic.
func (t *Transport) Start() error {
	if t.sink == nil {
		return errors.New("registers: sink is required")
	}
	filter := t.topics.AllRegisterRx()
	if err := t.client.Subscribe(filter, t.qos, t.handleFrame); err != nil {
		return fmt.Errorf("subscribe to register frames: %w", err)
	}
	return nil
}

// Stop unsubscribes from rx topics.
func (t *Transport) Stop() error {
	return t.client.Unsubscribe(t.topics.AllRegisterRx())
}

// SendRaw publishes a one-register frame to the device's tx topic without
// waiting for the broker.
func (t *Transport) SendRaw(deviceID string, id field.ID, raw int) error {
	payload, err := EncodeFrame(Frame{
		Seq:       t.seq.Add(1),
		Registers: []Register{{ID: uint16(id), Value: int64(raw)}},
	})
	if err != nil {
		return err
	}
	if err := t.client.PublishAsync(t.topics.RegisterTx(deviceID), payload, t.qos, false); err != nil {
		return fmt.Errorf("sending register %s to %s: %w", id, deviceID, err)
	}
	t.framesOut.Add(1)
	t.logger.Debug("register sent", "device_id", deviceID, "register", id.String(), "raw", raw)
	return nil
}

// handleFrame runs on the MQTT client's goroutine. Registers are delivered
// in frame order; one failing register does not drop the rest.
func (t *Transport) handleFrame(topic string, payload []byte) error {
	deviceID, ok := t.topics.ParseRegisterRx(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidFrame, topic)
	}

	frame, err := DecodeFrame(payload)
	if err != nil {
		t.decodeErrors.Add(1)
		return fmt.Errorf("device %s: %w", deviceID, err)
	}
	t.framesIn.Add(1)

	var errs []error
	for _, r := range frame.Registers {
		if err := t.sink.DeliverRaw(deviceID, field.ID(r.ID), int(r.Value)); err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", field.ID(r.ID), err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns traffic counters.
func (t *Transport) Stats() Stats {
	return Stats{
		FramesIn:     t.framesIn.Load(),
		FramesOut:    t.framesOut.Load(),
		DecodeErrors: t.decodeErrors.Load(),
	}
}
