package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smartgarden-cloud/internal/apperr"
	masterdata "smartgarden-cloud/internal/masterdata/domain"
)

const apiKeyBytes = 16

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service manages gardens and device registrations.
type Service struct {
	gardens    masterdata.GardenRepository
	devices    masterdata.DeviceRepository
	entropy    io.Reader
	clock      Clock
	bcryptCost int
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithEntropy sets the randomness source used for device API keys.
func WithEntropy(entropy io.Reader) ServiceOption {
	return func(s *Service) {
		if entropy != nil {
			s.entropy = entropy
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBcryptCost overrides the key hashing cost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// NewService constructs a masterdata service.
func NewService(gardens masterdata.GardenRepository, devices masterdata.DeviceRepository, opts ...ServiceOption) (*Service, error) {
	if gardens == nil {
		return nil, errors.New("masterdata: nil garden repository")
	}
	if devices == nil {
		return nil, errors.New("masterdata: nil device repository")
	}
	s := &Service{
		gardens:    gardens,
		devices:    devices,
		entropy:    rand.Reader,
		clock:      systemClock{},
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateGarden stores a new garden. An empty id is generated.
func (s *Service) CreateGarden(ctx context.Context, garden masterdata.Garden) (*masterdata.Garden, error) {
	garden.ID = strings.TrimSpace(garden.ID)
	if garden.ID == "" {
		garden.ID = "garden-" + uuid.NewString()[:8]
	}
	if err := garden.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.gardens.Get(ctx, garden.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, masterdata.ErrGardenExists
	}
	now := s.clock.Now()
	garden.CreatedAt = now
	garden.UpdatedAt = now
	if err := s.gardens.Create(ctx, &garden); err != nil {
		return nil, err
	}
	return &garden, nil
}

// GetGarden loads a garden or returns ErrGardenNotFound.
func (s *Service) GetGarden(ctx context.Context, id string) (*masterdata.Garden, error) {
	garden, err := s.gardens.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if garden == nil {
		return nil, masterdata.ErrGardenNotFound
	}
	return garden, nil
}

// ListGardens returns all gardens.
func (s *Service) ListGardens(ctx context.Context) ([]masterdata.Garden, error) {
	return s.gardens.List(ctx)
}

// EnsureGarden returns ErrGardenNotFound for unknown gardens.
func (s *Service) EnsureGarden(ctx context.Context, id string) error {
	_, err := s.GetGarden(ctx, id)
	return err
}

// RegisterDevice attaches a new device to a garden and returns the plaintext
// API key. Only the hash is stored.
func (s *Service) RegisterDevice(ctx context.Context, deviceID, gardenID string) (*masterdata.Device, string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, "", apperr.BadRequest("device: deviceId required")
	}
	if err := s.EnsureGarden(ctx, gardenID); err != nil {
		return nil, "", err
	}
	existing, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", masterdata.ErrDeviceExists
	}

	apiKey, err := s.newAPIKey()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), s.bcryptCost)
	if err != nil {
		return nil, "", err
	}
	now := s.clock.Now()
	device := &masterdata.Device{
		ID:         deviceID,
		GardenID:   gardenID,
		APIKeyHash: string(hash),
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := device.Validate(); err != nil {
		return nil, "", err
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, "", err
	}
	return device, apiKey, nil
}

// GetDevice loads a device or returns ErrDeviceNotFound.
func (s *Service) GetDevice(ctx context.Context, id string) (*masterdata.Device, error) {
	device, err := s.devices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, masterdata.ErrDeviceNotFound
	}
	return device, nil
}

// EnsureDevice returns ErrDeviceNotFound for unknown devices.
func (s *Service) EnsureDevice(ctx context.Context, id string) error {
	_, err := s.GetDevice(ctx, id)
	return err
}

// SetDeviceEnabled toggles whether a device receives commands and may authenticate.
func (s *Service) SetDeviceEnabled(ctx context.Context, id string, enabled bool) (*masterdata.Device, error) {
	if _, err := s.GetDevice(ctx, id); err != nil {
		return nil, err
	}
	if err := s.devices.SetEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	return s.GetDevice(ctx, id)
}

// EnabledDeviceIDs lists the enabled devices of a garden in id order.
func (s *Service) EnabledDeviceIDs(ctx context.Context, gardenID string) ([]string, error) {
	devices, err := s.devices.ListByGarden(ctx, gardenID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(devices))
	for _, device := range devices {
		if device.Enabled {
			ids = append(ids, device.ID)
		}
	}
	return ids, nil
}

// TouchLastSeen records device activity.
func (s *Service) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return s.devices.TouchLastSeen(ctx, id, at.UTC())
}

// VerifyDeviceKey checks a presented key against the stored hash.
// Unknown, disabled and mismatching devices all yield ErrInvalidAPIKey.
func (s *Service) VerifyDeviceKey(ctx context.Context, id, key string) error {
	if id == "" || key == "" {
		return masterdata.ErrInvalidAPIKey
	}
	device, err := s.devices.Get(ctx, id)
	if err != nil {
		return err
	}
	if device == nil || !device.Enabled {
		return masterdata.ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(device.APIKeyHash), []byte(key)); err != nil {
		return masterdata.ErrInvalidAPIKey
	}
	return nil
}

func (s *Service) newAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
