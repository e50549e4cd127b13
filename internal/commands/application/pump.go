package application

import (
	"context"
	"errors"
	"fmt"

	"smartgarden-cloud/internal/apperr"
	commands "smartgarden-cloud/internal/commands/domain"
)

const (
	// MinManualSeconds and MaxManualSeconds bound a requested manual duration.
	MinManualSeconds = 1
	MaxManualSeconds = 600
	// DefaultManualSeconds applies when the garden has no soil-moisture threshold.
	DefaultManualSeconds = 60
)

// ErrInvalidDuration rejects manual durations outside [1, 600].
var ErrInvalidDuration = fmt.Errorf("pump: durationSeconds must be within [%d, %d]: %w", MinManualSeconds, MaxManualSeconds, apperr.ErrBadRequest)

// GardenChecker reports unknown gardens.
type GardenChecker interface {
	EnsureGarden(ctx context.Context, gardenID string) error
}

// PumpLimitResolver returns a garden's configured pump limit, if any.
type PumpLimitResolver interface {
	PumpMaxSeconds(ctx context.Context, gardenID string) (int, bool, error)
}

// PumpService handles operator-initiated pump start and stop.
type PumpService struct {
	dispatcher     *Dispatcher
	locks          *GardenLocks
	gardens        GardenChecker
	limits         PumpLimitResolver
	defaultSeconds int
}

// NewPumpService constructs a manual pump service. defaultSeconds <= 0 uses DefaultManualSeconds.
func NewPumpService(dispatcher *Dispatcher, locks *GardenLocks, gardens GardenChecker, limits PumpLimitResolver, defaultSeconds int) (*PumpService, error) {
	if dispatcher == nil {
		return nil, errors.New("pump: nil dispatcher")
	}
	if locks == nil {
		return nil, errors.New("pump: nil garden locks")
	}
	if gardens == nil {
		return nil, errors.New("pump: nil garden checker")
	}
	if limits == nil {
		return nil, errors.New("pump: nil limit resolver")
	}
	if defaultSeconds <= 0 {
		defaultSeconds = DefaultManualSeconds
	}
	return &PumpService{
		dispatcher:     dispatcher,
		locks:          locks,
		gardens:        gardens,
		limits:         limits,
		defaultSeconds: defaultSeconds,
	}, nil
}

// Start queues a START for every enabled device of the garden. The duration
// is clamped to the garden's pump limit; nil requests the full limit.
func (s *PumpService) Start(ctx context.Context, gardenID string, durationSeconds *int, by commands.Initiator) (*DispatchResult, error) {
	if durationSeconds != nil && (*durationSeconds < MinManualSeconds || *durationSeconds > MaxManualSeconds) {
		return nil, ErrInvalidDuration
	}
	if err := s.gardens.EnsureGarden(ctx, gardenID); err != nil {
		return nil, err
	}
	limit, ok, err := s.limits.PumpMaxSeconds(ctx, gardenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		limit = s.defaultSeconds
	}
	effective := limit
	if durationSeconds != nil && *durationSeconds < limit {
		effective = *durationSeconds
	}

	unlock := s.locks.Lock(gardenID)
	defer unlock()
	return s.dispatcher.Dispatch(ctx, DispatchRequest{
		GardenID:        gardenID,
		Action:          commands.ActionStart,
		DurationSeconds: &effective,
		InitiatedBy:     by,
		Origin:          commands.BroadcastOrigin,
		Guard:           commands.GuardNone,
	})
}

// Stop queues a STOP for every enabled device of the garden.
func (s *PumpService) Stop(ctx context.Context, gardenID string, by commands.Initiator) (*DispatchResult, error) {
	if err := s.gardens.EnsureGarden(ctx, gardenID); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(gardenID)
	defer unlock()
	return s.dispatcher.Dispatch(ctx, DispatchRequest{
		GardenID:    gardenID,
		Action:      commands.ActionStop,
		InitiatedBy: by,
		Origin:      commands.BroadcastOrigin,
		Guard:       commands.GuardNone,
	})
}
