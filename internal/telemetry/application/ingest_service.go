package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"smartgarden-cloud/internal/apperr"
	masterdata "smartgarden-cloud/internal/masterdata/domain"
	"smartgarden-cloud/internal/observability/metrics"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

const (
	DefaultHistoryWindow = 24 * time.Hour
	DefaultHistorySize   = 50
	MaxHistorySize       = 500
)

var (
	// ErrValueRequired rejects readings without a numeric value.
	ErrValueRequired = apperr.BadRequest("telemetry: value required")
	// ErrDeviceDisabled rejects readings from disabled devices.
	ErrDeviceDisabled = fmt.Errorf("telemetry: device disabled: %w", apperr.ErrUnauthorized)
	// ErrInvalidWindow rejects history windows whose start is not before the end.
	ErrInvalidWindow = fmt.Errorf("telemetry: from must be before to: %w", apperr.ErrInvalidRange)
)

// DeviceDirectory resolves devices and records their activity.
type DeviceDirectory interface {
	GetDevice(ctx context.Context, id string) (*masterdata.Device, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

// GardenChecker reports unknown gardens.
type GardenChecker interface {
	EnsureGarden(ctx context.Context, gardenID string) error
}

// ReadingEvaluator runs auto-control for a stored reading.
type ReadingEvaluator interface {
	EvaluateReading(ctx context.Context, reading telemetry.Reading) error
}

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// IngestRequest is a reading as submitted by a device.
type IngestRequest struct {
	DeviceID   string
	SensorType string
	Value      *float64
	Timestamp  string
}

// IngestResult reports the stored reading. ControlErr is set when the reading
// was accepted but auto-control failed afterwards.
type IngestResult struct {
	Reading    telemetry.Reading
	ControlErr error
}

// HistoryRequest selects a page of a garden's readings. Zero values take defaults.
type HistoryRequest struct {
	GardenID string
	From     time.Time
	To       time.Time
	Page     int
	Size     int
}

// Service accepts device readings and serves their history.
type Service struct {
	repo      telemetry.ReadingRepository
	devices   DeviceDirectory
	gardens   GardenChecker
	evaluator ReadingEvaluator
	mirror    telemetry.ReadingMirror
	clock     Clock
	logger    *log.Logger
}

// Option configures the service.
type Option func(*Service)

// WithMirror sets a secondary sink for stored readings.
func WithMirror(mirror telemetry.ReadingMirror) Option {
	return func(s *Service) {
		s.mirror = mirror
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs the telemetry service.
func NewService(repo telemetry.ReadingRepository, devices DeviceDirectory, gardens GardenChecker, evaluator ReadingEvaluator, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("telemetry: nil reading repository")
	}
	if devices == nil {
		return nil, errors.New("telemetry: nil device directory")
	}
	if gardens == nil {
		return nil, errors.New("telemetry: nil garden checker")
	}
	if evaluator == nil {
		return nil, errors.New("telemetry: nil evaluator")
	}
	s := &Service{
		repo:      repo,
		devices:   devices,
		gardens:   gardens,
		evaluator: evaluator,
		clock:     systemClock{},
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest stores a reading, records device activity and then runs
// auto-control. A control failure never fails the ingestion.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()
	result, err := s.ingest(ctx, req)
	if err != nil {
		metrics.ObserveIngest(metrics.ResultError, time.Since(start))
		metrics.IncIngestError(apperr.Kind(err))
		return nil, err
	}
	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(start))
	return result, nil
}

func (s *Service) ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	sensorType, err := telemetry.ParseSensorType(req.SensorType)
	if err != nil {
		return nil, err
	}
	if req.Value == nil {
		return nil, ErrValueRequired
	}
	if math.IsNaN(*req.Value) || math.IsInf(*req.Value, 0) {
		return nil, apperr.BadRequest("telemetry: value must be finite")
	}
	device, err := s.devices.GetDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if !device.Enabled {
		return nil, ErrDeviceDisabled
	}

	now := s.clock.Now().UTC()
	reading := telemetry.Reading{
		DeviceID:   device.ID,
		GardenID:   device.GardenID,
		SensorType: sensorType,
		Value:      *req.Value,
		Timestamp:  ParseTimestamp(req.Timestamp, now),
	}
	if err := reading.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, &reading); err != nil {
		return nil, err
	}
	if err := s.devices.TouchLastSeen(ctx, device.ID, now); err != nil {
		metrics.IncIngestError("last_seen")
		s.logger.Printf("telemetry last-seen error: device=%s err=%v", device.ID, err)
	}
	if s.mirror != nil {
		if err := s.mirror.Mirror(ctx, reading); err != nil {
			s.logger.Printf("telemetry mirror error: device=%s err=%v", device.ID, err)
		}
	}

	result := &IngestResult{Reading: reading}
	if err := s.evaluator.EvaluateReading(ctx, reading); err != nil {
		metrics.IncAutoControlError()
		s.logger.Printf("auto-control error: garden=%s device=%s sensor=%s err=%v",
			reading.GardenID, reading.DeviceID, reading.SensorType, err)
		result.ControlErr = err
	}
	return result, nil
}

// History returns a page of a garden's readings, newest first.
func (s *Service) History(ctx context.Context, req HistoryRequest) (*telemetry.HistoryPage, error) {
	if err := s.gardens.EnsureGarden(ctx, req.GardenID); err != nil {
		return nil, err
	}
	if req.Page < 0 {
		return nil, apperr.BadRequest("telemetry: page must not be negative")
	}
	to := req.To
	if to.IsZero() {
		to = s.clock.Now().UTC()
	}
	from := req.From
	if from.IsZero() {
		from = to.Add(-DefaultHistoryWindow)
	}
	if !from.Before(to) {
		return nil, ErrInvalidWindow
	}
	size := req.Size
	if size <= 0 {
		size = DefaultHistorySize
	}
	if size > MaxHistorySize {
		size = MaxHistorySize
	}
	return s.repo.History(ctx, telemetry.HistoryQuery{
		GardenID: req.GardenID,
		From:     from.UTC(),
		To:       to.UTC(),
		Page:     req.Page,
		Size:     size,
	})
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a device timestamp. Values without a zone are UTC;
// empty or malformed values fall back to fallback.
func ParseTimestamp(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC()
		}
	}
	return fallback
}
