package audit

import (
	"context"
	"database/sql"
	"errors"

	commands "smartgarden-cloud/internal/commands/domain"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository writes pump logs to Postgres.
type Repository struct {
	db DBTX
}

// NewRepository constructs an audit repository.
func NewRepository(db DBTX) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	var duration sql.NullInt64
	if entry.DurationSeconds != nil {
		duration = sql.NullInt64{Int64: int64(*entry.DurationSeconds), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pump_logs (
	id, garden_id, device_id, action, started_at, duration_seconds, initiated_by, actor, status
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, entry.ID, entry.GardenID, entry.DeviceID, string(entry.Action), entry.StartedAt.UTC(), duration,
		string(entry.InitiatedBy), entry.Actor, string(entry.Status))
	return err
}

// ListByGarden returns the newest entries of a garden.
func (r *Repository) ListByGarden(ctx context.Context, gardenID string, limit int) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, garden_id, device_id, action, started_at, duration_seconds, initiated_by, actor, status
FROM pump_logs
WHERE garden_id = $1
ORDER BY started_at DESC, id DESC
LIMIT $2`, gardenID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var (
			entry       Entry
			action      string
			initiatedBy string
			status      string
			duration    sql.NullInt64
		)
		if err := rows.Scan(&entry.ID, &entry.GardenID, &entry.DeviceID, &action, &entry.StartedAt,
			&duration, &initiatedBy, &entry.Actor, &status); err != nil {
			return nil, err
		}
		if entry.Action, err = commands.ParseAction(action); err != nil {
			return nil, err
		}
		if entry.InitiatedBy, err = commands.ParseInitiator(initiatedBy); err != nil {
			return nil, err
		}
		if entry.Status, err = commands.ParseResultStatus(status); err != nil {
			return nil, err
		}
		if duration.Valid {
			v := int(duration.Int64)
			entry.DurationSeconds = &v
		}
		entry.StartedAt = entry.StartedAt.UTC()
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
