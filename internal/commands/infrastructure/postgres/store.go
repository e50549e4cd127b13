package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smartgarden-cloud/internal/audit"
	commands "smartgarden-cloud/internal/commands/domain"
)

// Store persists device commands in Postgres. Commit serializes writers of
// one garden with a transaction-scoped advisory lock so the guard check and
// the inserts see a consistent pending set across processes.
type Store struct {
	db *sql.DB
}

// NewStore constructs a command store.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("command store: nil db")
	}
	return &Store{db: db}, nil
}

// Commit writes the dispatch commands and its pump log in one transaction.
func (s *Store) Commit(ctx context.Context, dispatch commands.Dispatch) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, dispatch.GardenID); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	summary, err := pendingSummary(ctx, tx, dispatch.GardenID, dispatch.GuardSince)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if !dispatch.Guard.Allows(summary) {
		_ = tx.Rollback()
		return false, nil
	}

	for _, cmd := range dispatch.Commands {
		var duration sql.NullInt64
		if cmd.DurationSeconds != nil {
			duration = sql.NullInt64{Int64: int64(*cmd.DurationSeconds), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO device_commands (
	id, garden_id, device_id, action, duration_seconds, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, cmd.ID, cmd.GardenID, cmd.DeviceID, string(cmd.Action), duration, cmd.CreatedAt.UTC())
		if err != nil {
			_ = tx.Rollback()
			return false, err
		}
	}
	if err := audit.NewRepository(tx).Log(ctx, audit.FromDispatch(dispatch)); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Pending returns the device's unacknowledged commands, oldest first.
func (s *Store) Pending(ctx context.Context, deviceID string) ([]commands.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, garden_id, device_id, action, duration_seconds, created_at,
	actual_duration_seconds, result, acknowledged_at
FROM device_commands
WHERE device_id = $1 AND acknowledged_at IS NULL
ORDER BY created_at, seq`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []commands.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads a command by id. Unknown ids return nil, nil.
func (s *Store) Get(ctx context.Context, id string) (*commands.Command, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, garden_id, device_id, action, duration_seconds, created_at,
	actual_duration_seconds, result, acknowledged_at
FROM device_commands
WHERE id = $1`, id)
	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cmd, err
}

// Acknowledge moves a pending command to its terminal state. The update is
// conditional on the command still being pending.
func (s *Store) Acknowledge(ctx context.Context, id string, ack commands.Acknowledgment) (*commands.Command, error) {
	switch ack.Result {
	case commands.ResultSuccess, commands.ResultFailure:
	default:
		return nil, commands.ErrUnknownResult
	}
	var actual sql.NullInt64
	if ack.ActualDurationSeconds != nil {
		actual = sql.NullInt64{Int64: int64(*ack.ActualDurationSeconds), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE device_commands
SET actual_duration_seconds = $2, result = $3, acknowledged_at = $4
WHERE id = $1 AND acknowledged_at IS NULL`, id, actual, string(ack.Result), ack.AckedAt.UTC())
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, commands.ErrCommandNotFound
		}
		return nil, commands.ErrAlreadyAcknowledged
	}
	return s.Get(ctx, id)
}

// PendingSummary reports the newest pending START and STOP created after since.
func (s *Store) PendingSummary(ctx context.Context, gardenID string, since time.Time) (commands.PendingSummary, error) {
	return pendingSummary(ctx, s.db, gardenID, since)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pendingSummary(ctx context.Context, q queryRower, gardenID string, since time.Time) (commands.PendingSummary, error) {
	var latestStart, latestStop sql.NullTime
	err := q.QueryRowContext(ctx, `
SELECT
	MAX(created_at) FILTER (WHERE action = 'START'),
	MAX(created_at) FILTER (WHERE action = 'STOP')
FROM device_commands
WHERE garden_id = $1 AND acknowledged_at IS NULL AND created_at > $2`, gardenID, since.UTC()).Scan(&latestStart, &latestStop)
	if err != nil {
		return commands.PendingSummary{}, err
	}
	var summary commands.PendingSummary
	if latestStart.Valid {
		summary.LatestStart = latestStart.Time.UTC()
	}
	if latestStop.Valid {
		summary.LatestStop = latestStop.Time.UTC()
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*commands.Command, error) {
	var (
		cmd      commands.Command
		action   string
		duration sql.NullInt64
		actual   sql.NullInt64
		result   sql.NullString
		ackedAt  sql.NullTime
	)
	if err := row.Scan(&cmd.ID, &cmd.GardenID, &cmd.DeviceID, &action, &duration, &cmd.CreatedAt,
		&actual, &result, &ackedAt); err != nil {
		return nil, err
	}
	parsed, err := commands.ParseAction(action)
	if err != nil {
		return nil, err
	}
	cmd.Action = parsed
	cmd.CreatedAt = cmd.CreatedAt.UTC()
	if duration.Valid {
		v := int(duration.Int64)
		cmd.DurationSeconds = &v
	}
	if ackedAt.Valid {
		ack := &commands.Acknowledgment{AckedAt: ackedAt.Time.UTC()}
		if result.Valid {
			if ack.Result, err = commands.ParseResultStatus(result.String); err != nil {
				return nil, err
			}
		}
		if actual.Valid {
			v := int(actual.Int64)
			ack.ActualDurationSeconds = &v
		}
		cmd.Ack = ack
	}
	return &cmd, nil
}
