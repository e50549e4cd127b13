package memory

import (
	"context"
	"sort"
	"sync"

	thresholds "smartgarden-cloud/internal/thresholds/domain"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

type key struct {
	gardenID   string
	sensorType telemetry.SensorType
}

// Repository stores thresholds in memory.
type Repository struct {
	mu    sync.RWMutex
	items map[key]thresholds.Threshold
}

// NewRepository constructs an in-memory threshold repository.
func NewRepository() *Repository {
	return &Repository{items: make(map[key]thresholds.Threshold)}
}

// Get loads the threshold for a garden and sensor type.
func (r *Repository) Get(_ context.Context, gardenID string, sensorType telemetry.SensorType) (*thresholds.Threshold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	threshold, ok := r.items[key{gardenID: gardenID, sensorType: sensorType}]
	if !ok {
		return nil, nil
	}
	return &threshold, nil
}

// ListByGarden loads every threshold of a garden ordered by sensor type.
func (r *Repository) ListByGarden(_ context.Context, gardenID string) ([]thresholds.Threshold, error) {
	r.mu.RLock()
	var result []thresholds.Threshold
	for k, threshold := range r.items {
		if k.gardenID == gardenID {
			result = append(result, threshold)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].SensorType < result[j].SensorType })
	return result, nil
}

// Upsert writes a threshold.
func (r *Repository) Upsert(_ context.Context, threshold *thresholds.Threshold) error {
	if err := threshold.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.items[key{gardenID: threshold.GardenID, sensorType: threshold.SensorType}] = *threshold
	r.mu.Unlock()
	return nil
}
