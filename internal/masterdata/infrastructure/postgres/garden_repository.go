package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	masterdata "smartgarden-cloud/internal/masterdata/domain"
)

const (
	defaultGardensTable = "gardens"
	uniqueViolation     = "23505"
)

// GardenRepository is a Postgres implementation for gardens.
type GardenRepository struct {
	db    DBTX
	table string
}

// NewGardenRepository constructs a repository.
func NewGardenRepository(db DBTX, opts ...GardenOption) *GardenRepository {
	repo := &GardenRepository{db: db, table: defaultGardensTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// GardenOption configures the repository.
type GardenOption func(*GardenRepository)

// WithGardenTable overrides the default table name.
func WithGardenTable(table string) GardenOption {
	return func(repo *GardenRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a garden by id.
func (r *GardenRepository) Get(ctx context.Context, id string) (*masterdata.Garden, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("garden repo: nil db")
	}
	if id == "" {
		return nil, errors.New("garden repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT id, name, description, location, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	garden, err := scanGarden(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return garden, err
}

// List loads all gardens ordered by id.
func (r *GardenRepository) List(ctx context.Context) ([]masterdata.Garden, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("garden repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, name, description, location, created_at, updated_at
FROM %s
ORDER BY id ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Garden
	for rows.Next() {
		garden, err := scanGarden(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *garden)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create inserts a garden.
func (r *GardenRepository) Create(ctx context.Context, garden *masterdata.Garden) error {
	if r == nil || r.db == nil {
		return errors.New("garden repo: nil db")
	}
	if garden == nil {
		return errors.New("garden repo: nil garden")
	}
	if err := garden.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, name, description, location, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`, r.table)
	_, err := r.db.ExecContext(ctx, query, garden.ID, garden.Name, garden.Description, garden.Location,
		garden.CreatedAt.UTC(), garden.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return masterdata.ErrGardenExists
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGarden(row rowScanner) (*masterdata.Garden, error) {
	var garden masterdata.Garden
	if err := row.Scan(
		&garden.ID,
		&garden.Name,
		&garden.Description,
		&garden.Location,
		&garden.CreatedAt,
		&garden.UpdatedAt,
	); err != nil {
		return nil, err
	}
	garden.CreatedAt = garden.CreatedAt.UTC()
	garden.UpdatedAt = garden.UpdatedAt.UTC()
	return &garden, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
