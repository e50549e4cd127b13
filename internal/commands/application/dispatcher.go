package application

import (
	"context"
	"errors"
	"log"

	"smartgarden-cloud/internal/auth"
	commandsevents "smartgarden-cloud/internal/commands/application/events"
	commands "smartgarden-cloud/internal/commands/domain"
	"smartgarden-cloud/internal/observability/metrics"
)

const autoActor = "auto"

// DeviceLister lists the devices that should receive a garden's commands.
type DeviceLister interface {
	EnabledDeviceIDs(ctx context.Context, gardenID string) ([]string, error)
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// DispatchRequest is a pump decision to fan out.
type DispatchRequest struct {
	GardenID        string
	Action          commands.Action
	DurationSeconds *int
	InitiatedBy     commands.Initiator
	Origin          string
	Guard           commands.Guard
}

// DispatchResult reports what was written. Applied is false when the store
// guard rejected the decision; nothing was written in that case.
type DispatchResult struct {
	Applied  bool
	Dispatch commands.Dispatch
}

// Dispatcher turns pump decisions into one audit entry plus one pending
// command per enabled device.
type Dispatcher struct {
	store     commands.Store
	devices   DeviceLister
	tracker   *PumpStateTracker
	publisher EventPublisher
	clock     Clock
	logger    *log.Logger
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPublisher sets the event publisher for CommandIssued.
func WithPublisher(publisher EventPublisher) DispatcherOption {
	return func(d *Dispatcher) {
		d.publisher = publisher
	}
}

// WithDispatchClock overrides the clock.
func WithDispatchClock(clock Clock) DispatcherOption {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(store commands.Store, devices DeviceLister, tracker *PumpStateTracker, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("commands: nil store")
	}
	if devices == nil {
		return nil, errors.New("commands: nil device lister")
	}
	if tracker == nil {
		return nil, errors.New("commands: nil pump state tracker")
	}
	d := &Dispatcher{
		store:   store,
		devices: devices,
		tracker: tracker,
		clock:   systemClock{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch writes a pump decision. Callers hold the garden lock.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if req.GardenID == "" {
		return nil, errors.New("commands: garden id required")
	}
	if _, err := commands.ParseAction(string(req.Action)); err != nil {
		return nil, err
	}
	if _, err := commands.ParseInitiator(string(req.InitiatedBy)); err != nil {
		return nil, err
	}

	deviceIDs, err := d.devices.EnabledDeviceIDs(ctx, req.GardenID)
	if err != nil {
		return nil, err
	}

	now := d.clock.Now().UTC()
	origin := req.Origin
	if origin == "" {
		origin = commands.BroadcastOrigin
	}
	actor := auth.SubjectFromContext(ctx)
	if req.InitiatedBy == commands.InitiatedByAuto {
		actor = autoActor
	}
	status := commands.ResultSuccess
	if len(deviceIDs) == 0 {
		status = commands.ResultFailure
	}

	dispatch := commands.Dispatch{
		GardenID:        req.GardenID,
		Origin:          origin,
		Action:          req.Action,
		DurationSeconds: copyInt(req.DurationSeconds),
		InitiatedBy:     req.InitiatedBy,
		Actor:           actor,
		Status:          status,
		Guard:           req.Guard,
		GuardSince:      now.Add(-d.tracker.Lookback()),
		IssuedAt:        now,
		Commands:        make([]commands.Command, 0, len(deviceIDs)),
	}
	for _, deviceID := range deviceIDs {
		dispatch.Commands = append(dispatch.Commands, commands.Command{
			ID:              commands.NewCommandID(),
			GardenID:        req.GardenID,
			DeviceID:        deviceID,
			Action:          req.Action,
			DurationSeconds: copyInt(req.DurationSeconds),
			CreatedAt:       now,
		})
	}

	applied, err := d.store.Commit(ctx, dispatch)
	if err != nil {
		return nil, err
	}
	if !applied {
		metrics.IncDispatchSkipped(req.Guard.String())
		d.logger.Printf("pump dispatch skipped: garden=%s action=%s guard=%s", req.GardenID, req.Action, req.Guard)
		return &DispatchResult{Applied: false, Dispatch: dispatch}, nil
	}

	metrics.IncDispatch(string(req.Action), string(req.InitiatedBy))
	metrics.AddCommandsIssued(string(req.Action), len(dispatch.Commands))
	if len(deviceIDs) == 0 {
		d.logger.Printf("pump dispatch: garden=%s action=%s has no enabled devices", req.GardenID, req.Action)
	}
	d.publishIssued(ctx, dispatch)
	return &DispatchResult{Applied: true, Dispatch: dispatch}, nil
}

func (d *Dispatcher) publishIssued(ctx context.Context, dispatch commands.Dispatch) {
	if d.publisher == nil {
		return
	}
	for _, cmd := range dispatch.Commands {
		event := commandsevents.CommandIssued{
			CommandID:       cmd.ID,
			GardenID:        cmd.GardenID,
			DeviceID:        cmd.DeviceID,
			Action:          string(cmd.Action),
			DurationSeconds: copyInt(cmd.DurationSeconds),
			InitiatedBy:     string(dispatch.InitiatedBy),
			OccurredAt:      cmd.CreatedAt,
		}
		if err := d.publisher.Publish(ctx, event); err != nil {
			d.logger.Printf("command issued publish error: command=%s err=%v", cmd.ID, err)
		}
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
