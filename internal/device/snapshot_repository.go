package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// SnapshotRepository persists a device's raw register cache.
type SnapshotRepository interface {
	// SaveRegisters upserts every register in regs for the device.
	SaveRegisters(ctx context.Context, deviceID string, regs map[field.ID]int) error

	// LoadRegisters returns the stored registers, empty if none.
	LoadRegisters(ctx context.Context, deviceID string) (map[field.ID]int, error)
}

// SQLiteSnapshotRepository implements SnapshotRepository on the
// device_registers table.
type SQLiteSnapshotRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSnapshotRepository creates a repository on an open database.
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db, now: time.Now}
}

// SaveRegisters upserts the snapshot in one transaction.
func (r *SQLiteSnapshotRepository) SaveRegisters(ctx context.Context, deviceID string, regs map[field.ID]int) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidDevice)
	}
	if len(regs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO device_registers (device_id, register, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id, register)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing register upsert: %w", err)
	}
	defer stmt.Close()

	now := r.now().UTC().Format(time.RFC3339)
	for id, v := range regs {
		if _, err := stmt.ExecContext(ctx, deviceID, int(id), v, now); err != nil {
			return fmt.Errorf("saving register %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing register snapshot: %w", err)
	}
	return nil
}

// LoadRegisters reads the device's stored registers.
func (r *SQLiteSnapshotRepository) LoadRegisters(ctx context.Context, deviceID string) (map[field.ID]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT register, value FROM device_registers WHERE device_id = ?", deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying registers: %w", err)
	}
	defer rows.Close()

	regs := make(map[field.ID]int)
	for rows.Next() {
		var id, v int
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("scanning register row: %w", err)
		}
		regs[field.ID(id)] = v //nolint:gosec // stored from a field.ID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registers: %w", err)
	}
	return regs, nil
}
