package application

import (
	"context"
	"errors"
	"time"

	thresholds "smartgarden-cloud/internal/thresholds/domain"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

// GardenChecker reports unknown gardens.
type GardenChecker interface {
	EnsureGarden(ctx context.Context, gardenID string) error
}

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// UpsertRequest carries a threshold write. A nil PumpMaxSeconds keeps the
// stored limit, or the default for new thresholds.
type UpsertRequest struct {
	GardenID         string
	SensorType       telemetry.SensorType
	MinValue         float64
	MaxValue         float64
	AutoWaterEnabled bool
	PumpMaxSeconds   *int
}

// Service reads and writes thresholds.
type Service struct {
	repo    thresholds.Repository
	gardens GardenChecker
	clock   Clock
}

// NewService constructs a threshold service.
func NewService(repo thresholds.Repository, gardens GardenChecker, clock Clock) (*Service, error) {
	if repo == nil {
		return nil, errors.New("thresholds: nil repository")
	}
	if gardens == nil {
		return nil, errors.New("thresholds: nil garden checker")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Service{repo: repo, gardens: gardens, clock: clock}, nil
}

// Upsert creates or replaces the threshold for (garden, sensor type).
// An invalid request leaves any stored threshold untouched.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*thresholds.Threshold, error) {
	if err := s.gardens.EnsureGarden(ctx, req.GardenID); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, req.GardenID, req.SensorType)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	threshold := thresholds.Threshold{
		GardenID:         req.GardenID,
		SensorType:       req.SensorType,
		MinValue:         req.MinValue,
		MaxValue:         req.MaxValue,
		AutoWaterEnabled: req.AutoWaterEnabled,
		PumpMaxSeconds:   thresholds.DefaultPumpMaxSeconds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if existing != nil {
		threshold.CreatedAt = existing.CreatedAt
		threshold.PumpMaxSeconds = existing.PumpMaxSeconds
	}
	if req.PumpMaxSeconds != nil {
		threshold.PumpMaxSeconds = *req.PumpMaxSeconds
	}
	if err := threshold.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, &threshold); err != nil {
		return nil, err
	}
	return &threshold, nil
}

// Find returns the threshold or nil when none is configured.
func (s *Service) Find(ctx context.Context, gardenID string, sensorType telemetry.SensorType) (*thresholds.Threshold, error) {
	return s.repo.Get(ctx, gardenID, sensorType)
}

// Get returns the threshold or ErrThresholdNotFound.
func (s *Service) Get(ctx context.Context, gardenID string, sensorType telemetry.SensorType) (*thresholds.Threshold, error) {
	threshold, err := s.repo.Get(ctx, gardenID, sensorType)
	if err != nil {
		return nil, err
	}
	if threshold == nil {
		return nil, thresholds.ErrThresholdNotFound
	}
	return threshold, nil
}

// List returns every threshold of a garden.
func (s *Service) List(ctx context.Context, gardenID string) ([]thresholds.Threshold, error) {
	if err := s.gardens.EnsureGarden(ctx, gardenID); err != nil {
		return nil, err
	}
	return s.repo.ListByGarden(ctx, gardenID)
}

// PumpMaxSeconds returns the garden's soil-moisture pump limit, if configured.
func (s *Service) PumpMaxSeconds(ctx context.Context, gardenID string) (int, bool, error) {
	threshold, err := s.repo.Get(ctx, gardenID, telemetry.SensorSoilMoisture)
	if err != nil {
		return 0, false, err
	}
	if threshold == nil {
		return 0, false, nil
	}
	return threshold.PumpMaxSeconds, true, nil
}
