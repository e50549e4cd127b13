package application

import (
	"context"
	"errors"
	"log"

	autowater "smartgarden-cloud/internal/autowater/domain"
	commandsapp "smartgarden-cloud/internal/commands/application"
	commands "smartgarden-cloud/internal/commands/domain"
	"smartgarden-cloud/internal/observability/metrics"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
	thresholds "smartgarden-cloud/internal/thresholds/domain"
)

// ThresholdFinder returns a garden's threshold for a sensor, or nil.
type ThresholdFinder interface {
	Find(ctx context.Context, gardenID string, sensorType telemetry.SensorType) (*thresholds.Threshold, error)
}

// PumpState reports whether a garden's pump is considered running.
type PumpState interface {
	Running(ctx context.Context, gardenID string) (bool, error)
}

// CommandDispatcher writes pump decisions.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, req commandsapp.DispatchRequest) (*commandsapp.DispatchResult, error)
}

// Outcome describes what the controller did with one reading.
type Outcome struct {
	Decision   autowater.Decision
	Dispatched bool
	// Reason is set when no decision was evaluated or the store skipped it.
	Reason string
}

const (
	reasonNoThreshold = "no_threshold"
	reasonSkipped     = "skipped"
)

// Controller runs the auto-water loop for inbound readings.
type Controller struct {
	thresholds ThresholdFinder
	state      PumpState
	dispatcher CommandDispatcher
	locks      *commandsapp.GardenLocks
	logger     *log.Logger
}

// NewController constructs a controller. The locks must be shared with the
// manual pump service.
func NewController(finder ThresholdFinder, state PumpState, dispatcher CommandDispatcher, locks *commandsapp.GardenLocks, logger *log.Logger) (*Controller, error) {
	if finder == nil {
		return nil, errors.New("autowater: nil threshold finder")
	}
	if state == nil {
		return nil, errors.New("autowater: nil pump state")
	}
	if dispatcher == nil {
		return nil, errors.New("autowater: nil dispatcher")
	}
	if locks == nil {
		return nil, errors.New("autowater: nil garden locks")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		thresholds: finder,
		state:      state,
		dispatcher: dispatcher,
		locks:      locks,
		logger:     logger,
	}, nil
}

// Evaluate decides and, when needed, dispatches for one stored reading.
// The running check and the dispatch happen under the garden lock.
func (c *Controller) Evaluate(ctx context.Context, reading telemetry.Reading) (*Outcome, error) {
	threshold, err := c.thresholds.Find(ctx, reading.GardenID, reading.SensorType)
	if err != nil {
		return nil, err
	}
	if threshold == nil {
		metrics.IncEvaluation(reasonNoThreshold)
		return &Outcome{Decision: autowater.None, Reason: reasonNoThreshold}, nil
	}

	unlock := c.locks.Lock(reading.GardenID)
	defer unlock()

	running, err := c.state.Running(ctx, reading.GardenID)
	if err != nil {
		return nil, err
	}
	decision := autowater.Evaluate(reading.Value, *threshold, running)
	metrics.IncEvaluation(string(decision.Action))
	if decision.Action == autowater.ActionNone {
		return &Outcome{Decision: decision}, nil
	}

	req := commandsapp.DispatchRequest{
		GardenID:    reading.GardenID,
		InitiatedBy: commands.InitiatedByAuto,
		Origin:      commands.BroadcastOrigin,
	}
	switch decision.Action {
	case autowater.ActionStart:
		duration := decision.DurationSeconds
		req.Action = commands.ActionStart
		req.DurationSeconds = &duration
		req.Guard = commands.GuardNoPendingStart
	case autowater.ActionStop:
		req.Action = commands.ActionStop
		req.Guard = commands.GuardPendingStart
	}

	result, err := c.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("auto-water decision garden=%s device=%s sensor=%s value=%g action=%s applied=%t",
		reading.GardenID, reading.DeviceID, reading.SensorType, reading.Value, decision.Action, result.Applied)
	outcome := &Outcome{Decision: decision, Dispatched: result.Applied}
	if !result.Applied {
		outcome.Reason = reasonSkipped
	}
	return outcome, nil
}

// EvaluateReading adapts Evaluate to the ingestion pipeline.
func (c *Controller) EvaluateReading(ctx context.Context, reading telemetry.Reading) error {
	_, err := c.Evaluate(ctx, reading)
	return err
}
