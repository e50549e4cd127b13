package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "smartgarden-cloud/internal/masterdata/domain"
)

const defaultDevicesTable = "devices"

// DeviceRepository is a Postgres implementation for devices.
type DeviceRepository struct {
	db    DBTX
	table string
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db DBTX, opts ...DeviceOption) *DeviceRepository {
	repo := &DeviceRepository{db: db, table: defaultDevicesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DeviceOption configures the repository.
type DeviceOption func(*DeviceRepository)

// WithDeviceTable overrides the default table name.
func WithDeviceTable(table string) DeviceOption {
	return func(repo *DeviceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a device by id.
func (r *DeviceRepository) Get(ctx context.Context, id string) (*masterdata.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if id == "" {
		return nil, errors.New("device repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, garden_id, api_key_hash, enabled, last_seen, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return device, err
}

// ListByGarden loads devices for a garden.
func (r *DeviceRepository) ListByGarden(ctx context.Context, gardenID string) ([]masterdata.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if gardenID == "" {
		return nil, errors.New("device repo: empty garden id")
	}

	query := fmt.Sprintf(`
SELECT id, garden_id, api_key_hash, enabled, last_seen, created_at, updated_at
FROM %s
WHERE garden_id = $1
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, gardenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create inserts a device.
func (r *DeviceRepository) Create(ctx context.Context, device *masterdata.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	garden_id,
	api_key_hash,
	enabled,
	created_at,
	updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6
)`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		device.ID,
		device.GardenID,
		device.APIKeyHash,
		device.Enabled,
		device.CreatedAt.UTC(),
		device.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return masterdata.ErrDeviceExists
	}
	return err
}

// SetEnabled toggles the enabled flag.
func (r *DeviceRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	query := fmt.Sprintf(`UPDATE %s SET enabled = $2, updated_at = NOW() WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id, enabled)
	if err != nil {
		return err
	}
	if count, _ := result.RowsAffected(); count == 0 {
		return masterdata.ErrDeviceNotFound
	}
	return nil
}

// TouchLastSeen advances last_seen; it never moves backwards.
func (r *DeviceRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET last_seen = GREATEST(COALESCE(last_seen, $2), $2)
WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id, at.UTC())
	if err != nil {
		return err
	}
	if count, _ := result.RowsAffected(); count == 0 {
		return masterdata.ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row rowScanner) (*masterdata.Device, error) {
	var device masterdata.Device
	var lastSeen sql.NullTime
	if err := row.Scan(
		&device.ID,
		&device.GardenID,
		&device.APIKeyHash,
		&device.Enabled,
		&lastSeen,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		seen := lastSeen.Time.UTC()
		device.LastSeen = &seen
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}
