package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// Stats summarises every managed device.
type Stats struct {
	Devices           int    `json:"devices"`
	QueueDepth        int    `json:"queue_depth"`
	TransformFailures uint64 `json:"transform_failures"`
}

// Manager indexes devices by ID and routes calls to them.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Manager struct {
	devices map[string]*Device
	mu      sync.RWMutex
	logger  Logger
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		devices: make(map[string]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Add registers a device. Returns ErrDeviceExists if the ID is taken.
func (m *Manager) Add(d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[d.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID())
	}
	m.devices[d.ID()] = d
	return nil
}

// Get returns the device with id or ErrDeviceNotFound.
func (m *Manager) Get(id string) (*Device, error) {
	m.mu.RLock()
	d, ok := m.devices[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// List returns all devices ordered by ID.
func (m *Manager) List() []*Device {
	m.mu.RLock()
	out := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Count returns the number of managed devices.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// Start starts every device. Devices already started are skipped.
func (m *Manager) Start(ctx context.Context) error {
	var errs []error
	for _, d := range m.List() {
		err := d.Start(ctx)
		switch {
		case errors.Is(err, ErrAlreadyStarted):
		case err != nil:
			errs = append(errs, fmt.Errorf("starting %s: %w", d.ID(), err))
		default:
			m.logger.Info("device started", "device_id", d.ID(), "model", d.Model().ID)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every device in parallel and waits for all of them.
func (m *Manager) Stop(ctx context.Context) error {
	devices := m.List()
	errs := make([]error, len(devices))

	var wg sync.WaitGroup
	for i, d := range devices {
		i, d := i, d
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = d.Stop(ctx)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// DeliverRaw queues a register report for a device.
func (m *Manager) DeliverRaw(deviceID string, id field.ID, raw int) error {
	d, err := m.Get(deviceID)
	if err != nil {
		return err
	}
	return d.DeliverRaw(id, raw)
}

// SetProperty writes a semantic value to a device and waits for the result.
func (m *Manager) SetProperty(ctx context.Context, deviceID, name string, v field.Value) error {
	d, err := m.Get(deviceID)
	if err != nil {
		return err
	}
	return d.SetProperty(ctx, name, v)
}

// Republish asks every device to re-derive and republish its properties.
func (m *Manager) Republish(ctx context.Context) error {
	var errs []error
	for _, d := range m.List() {
		if err := d.Republish(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns aggregate counters without touching device goroutines.
func (m *Manager) Stats() Stats {
	var s Stats
	for _, d := range m.List() {
		s.Devices++
		s.QueueDepth += d.QueueDepth()
		s.TransformFailures += d.TransformFailures()
	}
	return s
}
