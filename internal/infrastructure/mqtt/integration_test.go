//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/config"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client, err := Connect(integrationConfig("appbridge-int-sub"), "")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := Topics{Base: "appbridge-int/appliances", Registers: "appbridge-int/registers"}
	filters := []string{topics.DeviceCommands("ac-1"), topics.AllRegisterRx()}

	for _, f := range filters {
		if err := client.Subscribe(f, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", f, err)
		}
	}
	if got := client.SubscriptionCount(); got != len(filters) {
		t.Errorf("SubscriptionCount() = %d, want %d", got, len(filters))
	}

	if err := client.Unsubscribe(filters[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(filters[0]) {
		t.Error("subscription still tracked after Unsubscribe")
	}
}

func TestIntegration_RegisterRoundTrip(t *testing.T) {
	client, err := Connect(integrationConfig("appbridge-int-rt"), "")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := Topics{Base: "appbridge-int/appliances", Registers: "appbridge-int/registers"}

	var mu sync.Mutex
	var gotDevice string
	received := make(chan struct{}, 1)

	err = client.Subscribe(topics.AllRegisterRx(), 1, func(topic string, _ []byte) error {
		device, ok := topics.ParseRegisterRx(topic)
		if !ok {
			return nil
		}
		mu.Lock()
		gotDevice = device
		mu.Unlock()
		select {
		case received <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.PublishAsync(topics.RegisterRx("ac-9"), []byte{0xa0}, 1, false); err != nil {
		t.Fatalf("PublishAsync() error = %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotDevice != "ac-9" {
		t.Errorf("device = %q, want ac-9", gotDevice)
	}
}

func TestIntegration_AvailabilityRetained(t *testing.T) {
	status := "appbridge-int/appliances/bridge/int/status"

	bridge, err := Connect(integrationConfig("appbridge-int-avail"), status)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	observer, err := Connect(integrationConfig("appbridge-int-observer"), "")
	if err != nil {
		bridge.Close()
		t.Fatalf("Connect() observer error = %v", err)
	}
	defer observer.Close()

	payloads := make(chan string, 4)
	err = observer.Subscribe(status, 1, func(_ string, payload []byte) error {
		payloads <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	waitFor := func(want string) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case got := <-payloads:
				if got == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor(PayloadOnline)
	bridge.Close()
	waitFor(PayloadOffline)
}
