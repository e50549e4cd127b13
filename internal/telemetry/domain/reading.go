package telemetry

import (
	"context"
	"errors"
	"time"
)

// Reading is an immutable sensor value reported by a device.
type Reading struct {
	ID         string
	DeviceID   string
	GardenID   string
	SensorType SensorType
	Value      float64
	Timestamp  time.Time
}

// Validate checks reading invariants.
func (r Reading) Validate() error {
	if r.DeviceID == "" {
		return errors.New("reading: empty device id")
	}
	if r.GardenID == "" {
		return errors.New("reading: empty garden id")
	}
	if !r.SensorType.Valid() {
		return ErrUnknownSensorType
	}
	if r.Timestamp.IsZero() {
		return errors.New("reading: empty timestamp")
	}
	return nil
}

// HistoryQuery selects readings of a garden in [From, To], newest first.
type HistoryQuery struct {
	GardenID string
	From     time.Time
	To       time.Time
	Page     int
	Size     int
}

// HistoryPage is one page of reading history.
type HistoryPage struct {
	Readings []Reading
	Page     int
	Size     int
	Total    int
}

// ReadingRepository persists readings.
type ReadingRepository interface {
	Insert(ctx context.Context, reading *Reading) error
	History(ctx context.Context, query HistoryQuery) (*HistoryPage, error)
}

// ReadingMirror copies stored readings to a secondary sink.
type ReadingMirror interface {
	Mirror(ctx context.Context, reading Reading) error
}
