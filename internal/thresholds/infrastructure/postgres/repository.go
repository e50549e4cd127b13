package postgres

import (
	"context"
	"database/sql"
	"errors"

	thresholds "smartgarden-cloud/internal/thresholds/domain"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is a Postgres implementation for thresholds.
type Repository struct {
	db DBTX
}

// NewRepository constructs a repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// Get loads the threshold for a garden and sensor type.
func (r *Repository) Get(ctx context.Context, gardenID string, sensorType telemetry.SensorType) (*thresholds.Threshold, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("threshold repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT garden_id, sensor_type, min_value, max_value, auto_water_enabled, pump_max_seconds, created_at, updated_at
FROM thresholds
WHERE garden_id = $1 AND sensor_type = $2`, gardenID, string(sensorType))
	threshold, err := scanThreshold(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return threshold, err
}

// ListByGarden loads every threshold of a garden ordered by sensor type.
func (r *Repository) ListByGarden(ctx context.Context, gardenID string) ([]thresholds.Threshold, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("threshold repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT garden_id, sensor_type, min_value, max_value, auto_water_enabled, pump_max_seconds, created_at, updated_at
FROM thresholds
WHERE garden_id = $1
ORDER BY sensor_type ASC`, gardenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []thresholds.Threshold
	for rows.Next() {
		threshold, err := scanThreshold(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *threshold)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert writes a threshold keyed by (garden_id, sensor_type).
func (r *Repository) Upsert(ctx context.Context, threshold *thresholds.Threshold) error {
	if r == nil || r.db == nil {
		return errors.New("threshold repo: nil db")
	}
	if threshold == nil {
		return errors.New("threshold repo: nil threshold")
	}
	if err := threshold.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO thresholds (
	garden_id, sensor_type, min_value, max_value, auto_water_enabled, pump_max_seconds, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (garden_id, sensor_type)
DO UPDATE SET
	min_value = EXCLUDED.min_value,
	max_value = EXCLUDED.max_value,
	auto_water_enabled = EXCLUDED.auto_water_enabled,
	pump_max_seconds = EXCLUDED.pump_max_seconds,
	updated_at = EXCLUDED.updated_at`,
		threshold.GardenID,
		string(threshold.SensorType),
		threshold.MinValue,
		threshold.MaxValue,
		threshold.AutoWaterEnabled,
		threshold.PumpMaxSeconds,
		threshold.CreatedAt.UTC(),
		threshold.UpdatedAt.UTC(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThreshold(row rowScanner) (*thresholds.Threshold, error) {
	var threshold thresholds.Threshold
	var sensorType string
	if err := row.Scan(
		&threshold.GardenID,
		&sensorType,
		&threshold.MinValue,
		&threshold.MaxValue,
		&threshold.AutoWaterEnabled,
		&threshold.PumpMaxSeconds,
		&threshold.CreatedAt,
		&threshold.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := telemetry.ParseSensorType(sensorType)
	if err != nil {
		return nil, err
	}
	threshold.SensorType = parsed
	threshold.CreatedAt = threshold.CreatedAt.UTC()
	threshold.UpdatedAt = threshold.UpdatedAt.UTC()
	return &threshold, nil
}
