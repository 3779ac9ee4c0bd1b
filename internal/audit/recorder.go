package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// recordTimeout bounds the log write when the caller's context is gone.
const recordTimeout = 2 * time.Second

// PropertyWriter applies a property write. *device.Manager satisfies it.
type PropertyWriter interface {
	SetProperty(ctx context.Context, deviceID, name string, v field.Value) error
}

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder passes writes through to a PropertyWriter and logs each one
// with its outcome. A failed log write never fails the property write.
type Recorder struct {
	next   PropertyWriter
	repo   Repository
	source string
	logger Logger
}

// NewRecorder wraps next, tagging every entry with source.
func NewRecorder(next PropertyWriter, repo Repository, source string, logger Logger) *Recorder {
	return &Recorder{next: next, repo: repo, source: source, logger: logger}
}

// SetProperty applies the write, then records it.
func (r *Recorder) SetProperty(ctx context.Context, deviceID, name string, v field.Value) error {
	err := r.next.SetProperty(ctx, deviceID, name, v)

	e := &Entry{
		DeviceID: deviceID,
		Property: name,
		Value:    fmt.Sprint(v),
		Source:   r.source,
		Status:   StatusAccepted,
	}
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if logErr := r.repo.Create(logCtx, e); logErr != nil && r.logger != nil {
		r.logger.Warn("recording command failed",
			"device_id", deviceID,
			"property", name,
			"error", logErr,
		)
	}
	return err
}
