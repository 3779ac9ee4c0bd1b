package hub

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/discovery"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/mqtt"
)

var testTopics = mqtt.Topics{Base: "appliances", Registers: "registers"}

func newTestBridge(t *testing.T, discoveryEnabled bool) (*Bridge, *mockClient, *mockCommander) {
	t.Helper()
	client := newMockClient()
	cmd := &mockCommander{}
	b, err := New(Options{
		Client:            client,
		Topics:            testTopics,
		Commander:         cmd,
		QoS:               1,
		Discovery:         discoveryEnabled,
		DiscoveryPrefix:   "homeassistant",
		AvailabilityTopic: "appliances/bridge/test/status",
		Origin:            discovery.Origin{Name: "appliancebridge", SWVersion: "test"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b.newID = func() string { return "cmd-1" }
	b.AddDevice(newFakeDevice(t, "ac1"))
	return b, client, cmd
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no client", Options{Commander: &mockCommander{}, Topics: testTopics}},
		{"no commander", Options{Client: newMockClient(), Topics: testTopics}},
		{"no base", Options{Client: newMockClient(), Commander: &mockCommander{}}},
		{"discovery without prefix", Options{Client: newMockClient(), Commander: &mockCommander{}, Topics: testTopics, Discovery: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestPublishRetainsFormattedValue(t *testing.T) {
	b, client, _ := newTestBridge(t, false)

	if err := b.Publish("ac1", "temperature", 21.5); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := b.Publish("ac1", "fan_mode", nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := client.find("appliances/ac1/temperature")
	if len(msgs) != 1 {
		t.Fatalf("temperature messages = %d, want 1", len(msgs))
	}
	if string(msgs[0].payload) != "21.5" || !msgs[0].retained || msgs[0].qos != 1 {
		t.Errorf("message = %+v, want retained 21.5 at QoS 1", msgs[0])
	}

	msgs = client.find("appliances/ac1/fan_mode")
	if len(msgs) != 1 || string(msgs[0].payload) != PayloadNone {
		t.Errorf("fan_mode messages = %+v, want one %q", msgs, PayloadNone)
	}
}

func TestStartPublishesDiscoveryAndSubscribes(t *testing.T) {
	b, client, _ := newTestBridge(t, true)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if client.handler("appliances/ac1/+/set") == nil {
		t.Error("command topic not subscribed")
	}

	msgs := client.find("homeassistant/device/ac1/config")
	if len(msgs) != 1 {
		t.Fatalf("discovery messages = %d, want 1", len(msgs))
	}
	if !msgs[0].retained {
		t.Error("discovery retained = false, want true")
	}

	var doc discovery.Document
	if err := json.Unmarshal(msgs[0].payload, &doc); err != nil {
		t.Fatalf("discovery payload: %v", err)
	}
	if doc.AvailabilityTopic != "appliances/bridge/test/status" {
		t.Errorf("AvailabilityTopic = %q", doc.AvailabilityTopic)
	}
	climate, ok := doc.Components["climate"]
	if !ok {
		t.Fatal("climate component missing")
	}
	if got := climate["mode_command_topic"]; got != "appliances/ac1/mode/set" {
		t.Errorf("mode_command_topic = %v, want appliances/ac1/mode/set", got)
	}

	if err := b.Start(); err == nil {
		t.Error("second Start() error = nil, want error")
	}
}

func TestStartWithoutDiscovery(t *testing.T) {
	b, client, _ := newTestBridge(t, false)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	if msgs := client.find("homeassistant/device/ac1/config"); len(msgs) != 0 {
		t.Errorf("discovery messages = %d, want 0", len(msgs))
	}
}

func TestCommandAppliedAndAcked(t *testing.T) {
	b, client, cmd := newTestBridge(t, false)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := client.handler("appliances/ac1/+/set")
	if err := handler("appliances/ac1/temperature/set", []byte("22.5")); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	if err := handler("appliances/ac1/mode/set", []byte(" cool ")); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	b.Stop()

	calls := cmd.getCalls()
	if len(calls) != 2 {
		t.Fatalf("SetProperty calls = %d, want 2", len(calls))
	}
	if calls[0].name != "temperature" || calls[0].value != 22.5 {
		t.Errorf("first call = %+v, want temperature=22.5", calls[0])
	}
	if calls[1].name != "mode" || calls[1].value != "cool" {
		t.Errorf("second call = %+v, want mode=cool", calls[1])
	}

	acks := client.find("appliances/ac1/mode/ack")
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].payload, &ack); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	if ack.Status != AckAccepted || ack.CommandID != "cmd-1" || ack.Error != "" {
		t.Errorf("ack = %+v, want accepted cmd-1", ack)
	}
	if got := b.Stats().Applied; got != 2 {
		t.Errorf("Stats().Applied = %d, want 2", got)
	}
}

func TestCommandFailureAcked(t *testing.T) {
	b, client, cmd := newTestBridge(t, false)
	cmd.err = errors.New("not writable")
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := client.handler("appliances/ac1/+/set")
	if err := handler("appliances/ac1/current_temperature/set", []byte("20")); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	b.Stop()

	acks := client.find("appliances/ac1/current_temperature/ack")
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].payload, &ack); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	if ack.Status != AckFailed || ack.Error != "not writable" {
		t.Errorf("ack = %+v, want failed with error", ack)
	}
	if got := b.Stats().Failed; got != 1 {
		t.Errorf("Stats().Failed = %d, want 1", got)
	}
}

func TestCommandRejectedTopics(t *testing.T) {
	b, _, cmd := newTestBridge(t, false)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := b.handleCommand("appliances/other/mode/set", []byte("cool")); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("unknown device error = %v, want ErrUnknownDevice", err)
	}
	if err := b.handleCommand("elsewhere/ac1/mode/set", []byte("cool")); err == nil {
		t.Error("foreign topic error = nil, want error")
	}
	b.Stop()

	if calls := cmd.getCalls(); len(calls) != 0 {
		t.Errorf("SetProperty calls = %d, want 0", len(calls))
	}
}

func TestCommandQueueFull(t *testing.T) {
	b, client, _ := newTestBridge(t, false)
	// Not started: nothing drains the queue.
	for i := 0; i < DefaultCommandQueueSize; i++ {
		if err := b.handleCommand("appliances/ac1/mode/set", []byte("cool")); err != nil {
			t.Fatalf("handleCommand(%d) error = %v", i, err)
		}
	}
	if err := b.handleCommand("appliances/ac1/mode/set", []byte("cool")); !errors.Is(err, ErrCommandQueueFull) {
		t.Errorf("handleCommand() error = %v, want ErrCommandQueueFull", err)
	}
	if got := b.Stats().Dropped; got != 1 {
		t.Errorf("Stats().Dropped = %d, want 1", got)
	}
	if acks := client.find("appliances/ac1/mode/ack"); len(acks) != 1 {
		t.Errorf("acks = %d, want 1 failure ack", len(acks))
	}
}

func TestResyncRepublishes(t *testing.T) {
	b, client, cmd := newTestBridge(t, true)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	b.Resync()
	b.Stop()

	if got := cmd.republishes(); got != 1 {
		t.Errorf("Republish calls = %d, want 1", got)
	}
	if got := len(client.find("homeassistant/device/ac1/config")); got != 2 {
		t.Errorf("discovery messages = %d, want 2", got)
	}
}

func TestStopUnsubscribes(t *testing.T) {
	b, client, _ := newTestBridge(t, false)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	b.Stop()
	b.Stop()

	if client.handler("appliances/ac1/+/set") != nil {
		t.Error("command topic still subscribed after Stop")
	}
}
