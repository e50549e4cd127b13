package thresholds

import (
	"context"
	"fmt"
	"math"
	"time"

	"smartgarden-cloud/internal/apperr"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

const (
	MinPumpSeconds        = 1
	MaxPumpSeconds        = 600
	DefaultPumpMaxSeconds = 60
)

var (
	ErrThresholdNotFound = fmt.Errorf("threshold: %w", apperr.ErrNotFound)
	ErrInvalidRange      = fmt.Errorf("threshold: min value must be below max value: %w", apperr.ErrInvalidRange)
	ErrInvalidPumpLimit  = fmt.Errorf("threshold: pumpMaxSeconds must be within [%d, %d]: %w", MinPumpSeconds, MaxPumpSeconds, apperr.ErrBadRequest)
)

// Threshold configures auto-watering for one sensor type of a garden.
// (GardenID, SensorType) is unique.
type Threshold struct {
	GardenID         string
	SensorType       telemetry.SensorType
	MinValue         float64
	MaxValue         float64
	AutoWaterEnabled bool
	PumpMaxSeconds   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks threshold invariants.
func (t Threshold) Validate() error {
	if t.GardenID == "" {
		return apperr.BadRequest("threshold: gardenId required")
	}
	if !t.SensorType.Valid() {
		return telemetry.ErrUnknownSensorType
	}
	if math.IsNaN(t.MinValue) || math.IsNaN(t.MaxValue) || math.IsInf(t.MinValue, 0) || math.IsInf(t.MaxValue, 0) {
		return apperr.BadRequest("threshold: values must be finite")
	}
	if t.MinValue >= t.MaxValue {
		return ErrInvalidRange
	}
	if t.PumpMaxSeconds < MinPumpSeconds || t.PumpMaxSeconds > MaxPumpSeconds {
		return ErrInvalidPumpLimit
	}
	return nil
}

// Repository persists thresholds. Get returns nil, nil when absent.
type Repository interface {
	Get(ctx context.Context, gardenID string, sensorType telemetry.SensorType) (*Threshold, error)
	ListByGarden(ctx context.Context, gardenID string) ([]Threshold, error)
	Upsert(ctx context.Context, threshold *Threshold) error
}
