package serverdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anders/showsync/internal/sync"
)

// Get returns the device with the given id, or nil when absent.
func (r *DeviceRegistry) Get(ctx context.Context, id string) (*sync.Device, error) {
	var dev sync.Device
	err := r.conn.QueryRowContext(ctx,
		`SELECT id, name, authorized, created_at FROM devices WHERE id = ?`, id,
	).Scan(&dev.ID, &dev.Name, &dev.Authorized, &dev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", id, err)
	}
	return &dev, nil
}

// List returns all registered devices.
func (r *DeviceRegistry) List(ctx context.Context) ([]sync.Device, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, name, authorized, created_at FROM devices ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var out []sync.Device
	for rows.Next() {
		var dev sync.Device
		if err := rows.Scan(&dev.ID, &dev.Name, &dev.Authorized, &dev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, dev)
	}
	return out, rows.Err()
}

// Create registers a new device with the given name. New devices are not
// authorized until explicitly promoted.
func (r *DeviceRegistry) Create(ctx context.Context, name string) (*sync.Device, error) {
	dev := &sync.Device{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO devices (id, name, authorized, created_at) VALUES (?, ?, 0, ?)`,
		dev.ID, dev.Name, dev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	return dev, nil
}

// Rename changes the device's display name.
func (r *DeviceRegistry) Rename(ctx context.Context, id, name string) error {
	_, err := r.conn.ExecContext(ctx, `UPDATE devices SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename device %s: %w", id, err)
	}
	return nil
}

// SetAuthorized flips the device's write authorization.
func (r *DeviceRegistry) SetAuthorized(ctx context.Context, id string, authorized bool) error {
	res, err := r.conn.ExecContext(ctx, `UPDATE devices SET authorized = ? WHERE id = ?`, authorized, id)
	if err != nil {
		return fmt.Errorf("set authorized %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("device %s not found", id)
	}
	return nil
}

// Delete removes the device. Deleting an absent device succeeds.
func (r *DeviceRegistry) Delete(ctx context.Context, id string) error {
	_, err := r.conn.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete device %s: %w", id, err)
	}
	return nil
}
