package application

import (
	"context"
	"errors"
	"log"

	commandsevents "smartgarden-cloud/internal/commands/application/events"
	commands "smartgarden-cloud/internal/commands/domain"
	"smartgarden-cloud/internal/observability/metrics"
)

// DeviceChecker reports unknown devices.
type DeviceChecker interface {
	EnsureDevice(ctx context.Context, deviceID string) error
}

// Queue is the device-facing side of the command protocol: devices pull
// pending commands and acknowledge each exactly once.
type Queue struct {
	store     commands.Store
	devices   DeviceChecker
	publisher EventPublisher
	clock     Clock
	logger    *log.Logger
}

// NewQueue constructs a command queue. publisher may be nil.
func NewQueue(store commands.Store, devices DeviceChecker, publisher EventPublisher, clock Clock, logger *log.Logger) (*Queue, error) {
	if store == nil {
		return nil, errors.New("commands: nil store")
	}
	if devices == nil {
		return nil, errors.New("commands: nil device checker")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{store: store, devices: devices, publisher: publisher, clock: clock, logger: logger}, nil
}

// Pending returns the device's unacknowledged commands, oldest first.
func (q *Queue) Pending(ctx context.Context, deviceID string) ([]commands.Command, error) {
	if err := q.devices.EnsureDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return q.store.Pending(ctx, deviceID)
}

// Acknowledge records a device's result for one of its commands. Commands of
// other devices are reported as not found.
func (q *Queue) Acknowledge(ctx context.Context, deviceID, commandID string, actualDurationSeconds *int, result commands.ResultStatus) (*commands.Command, error) {
	cmd, err := q.store.Get(ctx, commandID)
	if err != nil {
		return nil, err
	}
	if cmd == nil || (deviceID != "" && cmd.DeviceID != deviceID) {
		return nil, commands.ErrCommandNotFound
	}

	ack := commands.Acknowledgment{
		ActualDurationSeconds: copyInt(actualDurationSeconds),
		Result:                result,
		AckedAt:               q.clock.Now(),
	}
	probe := *cmd
	if err := probe.Acknowledge(ack); err != nil {
		if errors.Is(err, commands.ErrAlreadyAcknowledged) {
			metrics.IncCommandResult("conflict")
		}
		return nil, err
	}

	updated, err := q.store.Acknowledge(ctx, commandID, ack)
	if err != nil {
		if errors.Is(err, commands.ErrAlreadyAcknowledged) {
			metrics.IncCommandResult("conflict")
		}
		return nil, err
	}
	metrics.IncCommandResult(string(result))
	q.publishAcknowledged(ctx, *updated)
	return updated, nil
}

func (q *Queue) publishAcknowledged(ctx context.Context, cmd commands.Command) {
	if q.publisher == nil || cmd.Ack == nil {
		return
	}
	event := commandsevents.CommandAcknowledged{
		CommandID:             cmd.ID,
		GardenID:              cmd.GardenID,
		DeviceID:              cmd.DeviceID,
		Action:                string(cmd.Action),
		Result:                string(cmd.Ack.Result),
		ActualDurationSeconds: copyInt(cmd.Ack.ActualDurationSeconds),
		OccurredAt:            cmd.Ack.AckedAt,
	}
	if err := q.publisher.Publish(ctx, event); err != nil {
		q.logger.Printf("command acknowledged publish error: command=%s err=%v", cmd.ID, err)
	}
}
