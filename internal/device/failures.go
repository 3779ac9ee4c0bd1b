package device

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFailureQueueSize bounds failures waiting to be written.
const DefaultFailureQueueSize = 64

// Failure is the latest transform failure for one property.
type Failure struct {
	DeviceID    string    `json:"device_id"`
	Property    string    `json:"property"`
	Message     string    `json:"message"`
	Occurrences int       `json:"occurrences"`
	LastSeen    time.Time `json:"last_seen"`
}

// SQLiteFailureLog records transform failures in the transform_failures
// table. It implements engine.Observer.
//
// TransformFailed only queues; a single writer goroutine started by Start
// does the upserts. When the queue is full the failure is dropped and
// counted.
type SQLiteFailureLog struct {
	db     *sql.DB
	now    func() time.Time
	logger Logger

	queue    chan failureRecord
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	dropped  atomic.Uint64
}

type failureRecord struct {
	deviceID string
	property string
	message  string
	at       time.Time
}

// NewSQLiteFailureLog creates a failure log on an open database.
func NewSQLiteFailureLog(db *sql.DB) *SQLiteFailureLog {
	return &SQLiteFailureLog{
		db:     db,
		now:    time.Now,
		logger: noopLogger{},
		queue:  make(chan failureRecord, DefaultFailureQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger used when recording itself fails.
func (l *SQLiteFailureLog) SetLogger(logger Logger) {
	l.logger = logger
}

// Start launches the writer. Calling it again does nothing.
func (l *SQLiteFailureLog) Start() {
	if l.started.CompareAndSwap(false, true) {
		go l.run()
	}
}

// Stop writes what is queued and ends the writer.
func (l *SQLiteFailureLog) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	if l.started.Load() {
		<-l.done
	}
}

// Dropped returns the number of failures lost to a full queue.
func (l *SQLiteFailureLog) Dropped() uint64 { return l.dropped.Load() }

// TransformFailed queues the failure without blocking the caller.
func (l *SQLiteFailureLog) TransformFailed(deviceID, property string, err error) {
	rec := failureRecord{deviceID: deviceID, property: property, message: err.Error(), at: l.now()}

	select {
	case <-l.stop:
		l.drop(rec, "failure log stopped")
		return
	default:
	}
	select {
	case l.queue <- rec:
	default:
		l.drop(rec, "failure queue full")
	}
}

func (l *SQLiteFailureLog) drop(rec failureRecord, reason string) {
	l.dropped.Add(1)
	l.logger.Warn("transform failure not recorded",
		"reason", reason,
		"device_id", rec.deviceID,
		"property", rec.property,
	)
}

func (l *SQLiteFailureLog) run() {
	defer close(l.done)
	for {
		select {
		case rec := <-l.queue:
			l.write(rec)
		case <-l.stop:
			for {
				select {
				case rec := <-l.queue:
					l.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (l *SQLiteFailureLog) write(rec failureRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := l.record(ctx, rec); err != nil {
		l.logger.Error("recording transform failure failed",
			"device_id", rec.deviceID,
			"property", rec.property,
			"error", err,
		)
	}
}

// Record upserts one failure synchronously, stamped with the current time.
func (l *SQLiteFailureLog) Record(ctx context.Context, deviceID, property, message string) error {
	return l.record(ctx, failureRecord{deviceID: deviceID, property: property, message: message, at: l.now()})
}

func (l *SQLiteFailureLog) record(ctx context.Context, rec failureRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO transform_failures (device_id, property, message, occurrences, last_seen)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (device_id, property)
		DO UPDATE SET message = excluded.message,
		              occurrences = occurrences + 1,
		              last_seen = excluded.last_seen`,
		rec.deviceID, rec.property, rec.message, rec.at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording transform failure: %w", err)
	}
	return nil
}

// List returns the device's failures, most recent first.
func (l *SQLiteFailureLog) List(ctx context.Context, deviceID string) ([]Failure, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT device_id, property, message, occurrences, last_seen
		FROM transform_failures
		WHERE device_id = ?
		ORDER BY last_seen DESC, property`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying transform failures: %w", err)
	}
	defer rows.Close()

	failures := []Failure{}
	for rows.Next() {
		var f Failure
		var lastSeen string
		if err := rows.Scan(&f.DeviceID, &f.Property, &f.Message, &f.Occurrences, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning transform failure: %w", err)
		}
		f.LastSeen, err = time.Parse(time.RFC3339, lastSeen)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen %q: %w", lastSeen, err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transform failures: %w", err)
	}
	return failures, nil
}
