package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartgarden-cloud/internal/apperr"
)

var (
	ErrGardenNotFound = fmt.Errorf("garden: %w", apperr.ErrNotFound)
	ErrGardenExists   = fmt.Errorf("garden: already exists: %w", apperr.ErrConflict)
)

// Garden owns devices and thresholds.
type Garden struct {
	ID          string
	Name        string
	Description string
	Location    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks garden invariants.
func (g Garden) Validate() error {
	if g.ID == "" {
		return errors.New("garden: empty id")
	}
	if g.Name == "" {
		return apperr.BadRequest("garden: name required")
	}
	return nil
}

// GardenRepository manages garden persistence.
type GardenRepository interface {
	Get(ctx context.Context, id string) (*Garden, error)
	List(ctx context.Context) ([]Garden, error)
	Create(ctx context.Context, garden *Garden) error
}
