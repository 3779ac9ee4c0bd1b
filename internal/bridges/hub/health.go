package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/bridges/registers"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/device"
)

// DefaultHealthInterval is used when HealthReporterConfig.Interval is zero.
const DefaultHealthInterval = 30 * time.Second

// HealthPublisher publishes health messages. *mqtt.Client satisfies it.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// DeviceStats reports device counters. *device.Manager satisfies it.
type DeviceStats interface {
	Stats() device.Stats
}

// TransportStats reports register traffic. *registers.Transport satisfies it.
type TransportStats interface {
	Stats() registers.Stats
}

// CommandCounter reports hub command counters. *Bridge satisfies it.
type CommandCounter interface {
	Stats() CommandStats
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string
	Topic    string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Devices   DeviceStats
	Transport TransportStats
	Commands  CommandCounter
	Logger    Logger
}

// HealthReporter publishes retained health messages on an interval.
type HealthReporter struct {
	cfg        HealthReporterConfig
	instanceID string
	startTime  time.Time
	now        func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &HealthReporter{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		startTime:  time.Now(),
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// InstanceID identifies this process run in every health message.
func (h *HealthReporter) InstanceID() string { return h.instanceID }

// Start begins periodic reporting until ctx is done or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// Message builds the current health message without publishing it.
func (h *HealthReporter) Message() HealthMessage {
	status, reason := h.determineStatus()
	return h.message(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.cfg.Logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.cfg.Logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.cfg.Devices != nil && h.cfg.Devices.Stats().Devices == 0 {
		return HealthDegraded, "no devices configured"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	now := h.now()
	msg := HealthMessage{
		Bridge:        h.cfg.BridgeID,
		InstanceID:    h.instanceID,
		Timestamp:     now.UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.cfg.Devices != nil {
		ds := h.cfg.Devices.Stats()
		msg.Statistics.Devices = ds.Devices
		msg.Statistics.QueueDepth = ds.QueueDepth
		msg.Statistics.TransformFailures = ds.TransformFailures
	}
	if h.cfg.Transport != nil {
		ts := h.cfg.Transport.Stats()
		msg.Statistics.FramesIn = ts.FramesIn
		msg.Statistics.FramesOut = ts.FramesOut
		msg.Statistics.DecodeErrors = ts.DecodeErrors
	}
	if h.cfg.Commands != nil {
		cs := h.cfg.Commands.Stats()
		msg.Statistics.CommandsApplied = cs.Applied
		msg.Statistics.CommandsFailed = cs.Failed + cs.Dropped
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil || h.cfg.Topic == "" {
		return nil
	}
	payload, err := json.Marshal(h.message(status, reason))
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}
