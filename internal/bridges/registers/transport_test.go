package registers

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/mqtt"
)

// ============================================================================
// Test doubles
// ============================================================================

type published struct {
	topic   string
	payload []byte
	qos     byte
}

type mockClient struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newMockClient() *mockClient {
	return &mockClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockClient) PublishAsync(topic string, payload []byte, qos byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, payload, qos})
	return nil
}

func (m *mockClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockClient) deliver(topic string, payload []byte) error {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for _, h := range m.handlers {
		handler = h
	}
	m.mu.Unlock()
	return handler(topic, payload)
}

type mockSink struct {
	mu        sync.Mutex
	delivered []string
	reject    map[string]bool
}

func (s *mockSink) DeliverRaw(deviceID string, id field.ID, raw int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject[deviceID] {
		return errors.New("unknown device")
	}
	s.delivered = append(s.delivered, fmt.Sprintf("%s %s=%d", deviceID, id, raw))
	return nil
}

var testTopics = mqtt.Topics{Base: "graylogic/appliances", Registers: "graylogic/registers"}

func newTestTransport(t *testing.T, sink Sink) (*Transport, *mockClient) {
	t.Helper()
	client := newMockClient()
	tr, err := New(Options{Client: client, Topics: testTopics, Sink: sink, QoS: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr, client
}

// ============================================================================
// Tests
// ============================================================================

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() error = nil, want error")
	}
}

func TestStart_RequiresSink(t *testing.T) {
	tr, _ := newTestTransport(t, nil)
	if err := tr.Start(); err == nil {
		t.Error("Start() error = nil, want error")
	}
}

func TestSendRaw(t *testing.T) {
	tr, client := newTestTransport(t, &mockSink{})

	if err := tr.SendRaw("ac-1", 0x1fe, 44); err != nil {
		t.Fatalf("SendRaw() error = %v", err)
	}
	if err := tr.SendRaw("ac-1", 0x1f7, 0); err != nil {
		t.Fatalf("SendRaw() error = %v", err)
	}

	if len(client.published) != 2 {
		t.Fatalf("published = %d, want 2", len(client.published))
	}
	p := client.published[0]
	if p.topic != "graylogic/registers/ac-1/tx" || p.qos != 1 {
		t.Errorf("publish = %s qos %d", p.topic, p.qos)
	}

	frame, err := DecodeFrame(p.payload)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if frame.Seq != 1 || frame.Registers[0] != (Register{ID: 0x1fe, Value: 44}) {
		t.Errorf("frame = %+v", frame)
	}

	second, _ := DecodeFrame(client.published[1].payload) //nolint:errcheck // checked above
	if second.Seq != 2 {
		t.Errorf("second Seq = %d, want 2", second.Seq)
	}
	if got := tr.Stats().FramesOut; got != 2 {
		t.Errorf("FramesOut = %d, want 2", got)
	}
}

func TestSendRaw_OutOfRange(t *testing.T) {
	tr, client := newTestTransport(t, &mockSink{})

	if err := tr.SendRaw("ac-1", 0x1fe, math.MinInt32-1); !errors.Is(err, ErrRegisterRange) {
		t.Errorf("SendRaw() error = %v, want %v", err, ErrRegisterRange)
	}
	if len(client.published) != 0 {
		t.Errorf("published = %d, want 0", len(client.published))
	}
}

func TestSendRaw_PublishError(t *testing.T) {
	tr, client := newTestTransport(t, &mockSink{})
	client.publishErr = mqtt.ErrNotConnected

	err := tr.SendRaw("ac-1", 0x1fe, 44)
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("SendRaw() error = %v, want %v", err, mqtt.ErrNotConnected)
	}
	if tr.Stats().FramesOut != 0 {
		t.Error("failed send was counted")
	}
}

func TestInboundFrames(t *testing.T) {
	sink := &mockSink{reject: map[string]bool{"ghost": true}}
	tr, client := newTestTransport(t, sink)

	if err := tr.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, ok := client.handlers["graylogic/registers/+/rx"]; !ok {
		t.Fatalf("subscriptions = %v, want rx filter", client.handlers)
	}

	good, err := EncodeFrame(Frame{Registers: []Register{{ID: 0x1f7, Value: 1}, {ID: 0x1f9, Value: 4}}})
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		wantErr bool
	}{
		{"delivered in order", "graylogic/registers/ac-1/rx", good, false},
		{"bad topic", "graylogic/registers/ac-1/tx", good, true},
		{"bad payload", "graylogic/registers/ac-1/rx", []byte{0xff}, true},
		{"unknown device", "graylogic/registers/ghost/rx", good, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.deliver(tt.topic, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	want := []string{"ac-1 0x1f7=1", "ac-1 0x1f9=4"}
	if fmt.Sprint(sink.delivered) != fmt.Sprint(want) {
		t.Errorf("delivered = %v, want %v", sink.delivered, want)
	}

	stats := tr.Stats()
	if stats.FramesIn != 2 || stats.DecodeErrors != 1 {
		t.Errorf("Stats() = %+v, want 2 in, 1 decode error", stats)
	}

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(client.handlers) != 0 {
		t.Error("Stop() left subscriptions behind")
	}
}
