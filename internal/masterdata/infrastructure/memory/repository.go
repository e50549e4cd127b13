package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	masterdata "smartgarden-cloud/internal/masterdata/domain"
)

// GardenRepository stores gardens in memory.
type GardenRepository struct {
	mu    sync.RWMutex
	items map[string]masterdata.Garden
}

// NewGardenRepository constructs an in-memory garden repository.
func NewGardenRepository() *GardenRepository {
	return &GardenRepository{items: make(map[string]masterdata.Garden)}
}

// Get loads a garden by id.
func (r *GardenRepository) Get(_ context.Context, id string) (*masterdata.Garden, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	garden, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &garden, nil
}

// List loads all gardens ordered by id.
func (r *GardenRepository) List(_ context.Context) ([]masterdata.Garden, error) {
	r.mu.RLock()
	result := make([]masterdata.Garden, 0, len(r.items))
	for _, garden := range r.items {
		result = append(result, garden)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Create inserts a garden.
func (r *GardenRepository) Create(_ context.Context, garden *masterdata.Garden) error {
	if err := garden.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[garden.ID]; ok {
		return masterdata.ErrGardenExists
	}
	r.items[garden.ID] = *garden
	return nil
}

// DeviceRepository stores devices in memory.
type DeviceRepository struct {
	mu    sync.RWMutex
	items map[string]masterdata.Device
}

// NewDeviceRepository constructs an in-memory device repository.
func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{items: make(map[string]masterdata.Device)}
}

// Get loads a device by id.
func (r *DeviceRepository) Get(_ context.Context, id string) (*masterdata.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return cloneDevice(device), nil
}

// ListByGarden loads devices for a garden ordered by id.
func (r *DeviceRepository) ListByGarden(_ context.Context, gardenID string) ([]masterdata.Device, error) {
	r.mu.RLock()
	var result []masterdata.Device
	for _, device := range r.items {
		if device.GardenID == gardenID {
			result = append(result, *cloneDevice(device))
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Create inserts a device.
func (r *DeviceRepository) Create(_ context.Context, device *masterdata.Device) error {
	if err := device.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[device.ID]; ok {
		return masterdata.ErrDeviceExists
	}
	r.items[device.ID] = *cloneDevice(*device)
	return nil
}

// SetEnabled toggles the enabled flag.
func (r *DeviceRepository) SetEnabled(_ context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.items[id]
	if !ok {
		return masterdata.ErrDeviceNotFound
	}
	device.Enabled = enabled
	device.UpdatedAt = time.Now().UTC()
	r.items[id] = device
	return nil
}

// TouchLastSeen advances last seen; it never moves backwards.
func (r *DeviceRepository) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.items[id]
	if !ok {
		return masterdata.ErrDeviceNotFound
	}
	if device.LastSeen == nil || at.After(*device.LastSeen) {
		seen := at.UTC()
		device.LastSeen = &seen
	}
	r.items[id] = device
	return nil
}

func cloneDevice(device masterdata.Device) *masterdata.Device {
	if device.LastSeen != nil {
		seen := *device.LastSeen
		device.LastSeen = &seen
	}
	return &device
}
