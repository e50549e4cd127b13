package postgres

import (
	"context"
	"database/sql"
	"errors"

	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

// ReadingRepository persists readings to Postgres.
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert stores a reading and assigns its id.
func (r *ReadingRepository) Insert(ctx context.Context, reading *telemetry.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	return r.db.QueryRowContext(ctx, `
INSERT INTO sensor_readings (device_id, garden_id, sensor_type, value, ts)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text`,
		reading.DeviceID, reading.GardenID, string(reading.SensorType), reading.Value, reading.Timestamp.UTC(),
	).Scan(&reading.ID)
}

// History returns readings of a garden in [From, To], newest first.
func (r *ReadingRepository) History(ctx context.Context, query telemetry.HistoryQuery) (*telemetry.HistoryPage, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	page := &telemetry.HistoryPage{Page: query.Page, Size: query.Size}
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM sensor_readings
WHERE garden_id = $1 AND ts >= $2 AND ts <= $3`,
		query.GardenID, query.From.UTC(), query.To.UTC()).Scan(&page.Total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id::text, device_id, garden_id, sensor_type, value, ts
FROM sensor_readings
WHERE garden_id = $1 AND ts >= $2 AND ts <= $3
ORDER BY ts DESC, id DESC
LIMIT $4 OFFSET $5`,
		query.GardenID, query.From.UTC(), query.To.UTC(), query.Size, query.Page*query.Size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reading    telemetry.Reading
			sensorType string
		)
		if err := rows.Scan(&reading.ID, &reading.DeviceID, &reading.GardenID, &sensorType, &reading.Value, &reading.Timestamp); err != nil {
			return nil, err
		}
		if reading.SensorType, err = telemetry.ParseSensorType(sensorType); err != nil {
			return nil, err
		}
		reading.Timestamp = reading.Timestamp.UTC()
		page.Readings = append(page.Readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}
