package application

import (
	"context"
	"errors"
	"time"

	commands "smartgarden-cloud/internal/commands/domain"
)

// DefaultLookback bounds how old a pending START may be and still count as running.
const DefaultLookback = 15 * time.Minute

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// PumpStateTracker infers whether a garden's pump is running from command history.
type PumpStateTracker struct {
	store    commands.Store
	clock    Clock
	lookback time.Duration
}

// NewPumpStateTracker constructs a tracker. A non-positive lookback uses DefaultLookback.
func NewPumpStateTracker(store commands.Store, clock Clock, lookback time.Duration) (*PumpStateTracker, error) {
	if store == nil {
		return nil, errors.New("commands: nil store")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &PumpStateTracker{store: store, clock: clock, lookback: lookback}, nil
}

// Lookback returns the configured window.
func (t *PumpStateTracker) Lookback() time.Duration {
	return t.lookback
}

// Since returns the start of the lookback window.
func (t *PumpStateTracker) Since() time.Time {
	return t.clock.Now().Add(-t.lookback)
}

// IsRunning reports whether an unacknowledged START was created within the window.
func (t *PumpStateTracker) IsRunning(ctx context.Context, gardenID string, within time.Duration) (bool, error) {
	if within <= 0 {
		within = t.lookback
	}
	summary, err := t.store.PendingSummary(ctx, gardenID, t.clock.Now().Add(-within))
	if err != nil {
		return false, err
	}
	return summary.Running(), nil
}

// Running is IsRunning over the configured lookback.
func (t *PumpStateTracker) Running(ctx context.Context, gardenID string) (bool, error) {
	return t.IsRunning(ctx, gardenID, t.lookback)
}
