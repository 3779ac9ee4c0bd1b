package hub

import (
	"context"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/models"
)

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// mockClient implements MQTTClient and HealthPublisher for testing.
type mockClient struct {
	mu            sync.Mutex
	connected     bool
	messages      []publishedMessage
	subscriptions map[string]mqtt.MessageHandler
}

func newMockClient() *mockClient {
	return &mockClient{connected: true, subscriptions: make(map[string]mqtt.MessageHandler)}
}

func (m *mockClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (m *mockClient) PublishAsync(topic string, payload []byte, qos byte, retained bool) error {
	return m.Publish(topic, payload, qos, retained)
}

func (m *mockClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, topic)
	return nil
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *mockClient) find(topic string) []publishedMessage {
	var out []publishedMessage
	for _, msg := range m.getMessages() {
		if msg.topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mockClient) handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions[topic]
}

type setCall struct {
	deviceID string
	name     string
	value    field.Value
}

// mockCommander implements Commander for testing.
type mockCommander struct {
	mu          sync.Mutex
	calls       []setCall
	err         error
	republished int
}

func (m *mockCommander) SetProperty(_ context.Context, deviceID, name string, v field.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, setCall{deviceID: deviceID, name: name, value: v})
	return m.err
}

func (m *mockCommander) Republish(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.republished++
	return nil
}

func (m *mockCommander) getCalls() []setCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]setCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockCommander) republishes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.republished
}

// fakeDevice implements Device on top of the LG model.
type fakeDevice struct {
	id  string
	reg *field.Registry
}

func (d fakeDevice) ID() string                { return d.id }
func (d fakeDevice) Name() string              { return "Living Room AC" }
func (d fakeDevice) Model() models.Model       { return models.LGRAC056905WW }
func (d fakeDevice) Registry() *field.Registry { return d.reg }

func newFakeDevice(t *testing.T, id string) fakeDevice {
	t.Helper()
	reg, err := models.LGRAC056905WW.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	return fakeDevice{id: id, reg: reg}
}
