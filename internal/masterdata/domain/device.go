package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartgarden-cloud/internal/apperr"
)

var (
	ErrDeviceNotFound = fmt.Errorf("device: %w", apperr.ErrNotFound)
	ErrDeviceExists   = fmt.Errorf("device: already registered: %w", apperr.ErrConflict)
	ErrInvalidAPIKey  = fmt.Errorf("device: invalid api key: %w", apperr.ErrUnauthorized)
)

// Device is an irrigation controller attached to exactly one garden.
// ID is the identifier the device presents on the wire.
type Device struct {
	ID         string
	GardenID   string
	APIKeyHash string
	Enabled    bool
	LastSeen   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.ID == "" {
		return apperr.BadRequest("device: deviceId required")
	}
	if d.GardenID == "" {
		return apperr.BadRequest("device: gardenId required")
	}
	if d.APIKeyHash == "" {
		return errors.New("device: empty api key hash")
	}
	return nil
}

// DeviceRepository manages device persistence.
type DeviceRepository interface {
	Get(ctx context.Context, id string) (*Device, error)
	ListByGarden(ctx context.Context, gardenID string) ([]Device, error)
	Create(ctx context.Context, device *Device) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}
