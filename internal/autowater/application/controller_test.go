package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"smartgarden-cloud/internal/audit"
	autowater "smartgarden-cloud/internal/autowater/domain"
	commandsapp "smartgarden-cloud/internal/commands/application"
	commands "smartgarden-cloud/internal/commands/domain"
	commandsmemory "smartgarden-cloud/internal/commands/infrastructure/memory"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
	thresholds "smartgarden-cloud/internal/thresholds/domain"
)

type stubFinder struct {
	threshold *thresholds.Threshold
}

func (s stubFinder) Find(_ context.Context, gardenID string, sensorType telemetry.SensorType) (*thresholds.Threshold, error) {
	if s.threshold == nil || s.threshold.GardenID != gardenID || s.threshold.SensorType != sensorType {
		return nil, nil
	}
	copied := *s.threshold
	return &copied, nil
}

type stubDevices map[string][]string

func (s stubDevices) EnabledDeviceIDs(_ context.Context, gardenID string) ([]string, error) {
	return append([]string(nil), s[gardenID]...), nil
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, commandsapp.DispatchRequest) (*commandsapp.DispatchResult, error) {
	return nil, errors.New("db down")
}

type controllerFixture struct {
	controller *Controller
	store      *commandsmemory.Store
	logs       *audit.MemoryLog
	tracker    *commandsapp.PumpStateTracker
}

func newControllerFixture(t *testing.T, devices stubDevices) *controllerFixture {
	t.Helper()
	logs := audit.NewMemoryLog()
	store, err := commandsmemory.NewStore(logs)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	tracker, err := commandsapp.NewPumpStateTracker(store, nil, 15*time.Minute)
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	dispatcher, err := commandsapp.NewDispatcher(store, devices, tracker, commandsapp.WithLogger(logger))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	finder := stubFinder{threshold: &thresholds.Threshold{
		GardenID:         "G1",
		SensorType:       telemetry.SensorSoilMoisture,
		MinValue:         30,
		MaxValue:         60,
		AutoWaterEnabled: true,
		PumpMaxSeconds:   45,
	}}
	controller, err := NewController(finder, tracker, dispatcher, commandsapp.NewGardenLocks(), logger)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return &controllerFixture{controller: controller, store: store, logs: logs, tracker: tracker}
}

func reading(value float64) telemetry.Reading {
	return telemetry.Reading{
		DeviceID:   "D1",
		GardenID:   "G1",
		SensorType: telemetry.SensorSoilMoisture,
		Value:      value,
		Timestamp:  time.Now().UTC(),
	}
}

func TestControllerStartThenStop(t *testing.T) {
	f := newControllerFixture(t, stubDevices{"G1": {"D1"}})
	ctx := context.Background()

	outcome, err := f.controller.Evaluate(ctx, reading(15))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if outcome.Decision.Action != autowater.ActionStart || !outcome.Dispatched {
		t.Fatalf("expected dispatched START, got %+v", outcome)
	}
	pending, _ := f.store.Pending(ctx, "D1")
	if len(pending) != 1 || pending[0].DurationSeconds == nil || *pending[0].DurationSeconds != 45 {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	outcome, _ = f.controller.Evaluate(ctx, reading(45))
	if outcome.Decision.Action != autowater.ActionNone {
		t.Fatalf("expected hold between bands, got %+v", outcome)
	}

	outcome, err = f.controller.Evaluate(ctx, reading(65))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if outcome.Decision.Action != autowater.ActionStop || !outcome.Dispatched {
		t.Fatalf("expected dispatched STOP, got %+v", outcome)
	}
	entries, _ := f.logs.ListByGarden(ctx, "G1", 10)
	if len(entries) != 2 || entries[0].Action != commands.ActionStop || entries[0].InitiatedBy != commands.InitiatedByAuto {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}
}

func TestControllerIgnoresOtherSensorsAndGardens(t *testing.T) {
	f := newControllerFixture(t, stubDevices{"G1": {"D1"}})
	ctx := context.Background()

	r := reading(5)
	r.SensorType = telemetry.SensorTemperature
	outcome, err := f.controller.Evaluate(ctx, r)
	if err != nil || outcome.Reason != reasonNoThreshold {
		t.Fatalf("expected no threshold, got %+v %v", outcome, err)
	}
	r = reading(5)
	r.GardenID = "G2"
	outcome, err = f.controller.Evaluate(ctx, r)
	if err != nil || outcome.Reason != reasonNoThreshold {
		t.Fatalf("expected no threshold, got %+v %v", outcome, err)
	}
}

func TestControllerConcurrentReadingsIssueSingleStart(t *testing.T) {
	f := newControllerFixture(t, stubDevices{"G1": {"D1", "D2"}})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.controller.EvaluateReading(ctx, reading(10)); err != nil {
				t.Errorf("evaluate: %v", err)
			}
		}()
	}
	wg.Wait()

	for _, deviceID := range []string{"D1", "D2"} {
		pending, _ := f.store.Pending(ctx, deviceID)
		if len(pending) != 1 {
			t.Fatalf("%s: expected exactly one START, got %d", deviceID, len(pending))
		}
	}
	entries, _ := f.logs.ListByGarden(ctx, "G1", 100)
	if len(entries) != 1 {
		t.Fatalf("expected a single audit entry, got %d", len(entries))
	}
}

func TestControllerStopAfterAckIsNotIssued(t *testing.T) {
	f := newControllerFixture(t, stubDevices{"G1": {"D1"}})
	ctx := context.Background()

	if _, err := f.controller.Evaluate(ctx, reading(15)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	pending, _ := f.store.Pending(ctx, "D1")
	if _, err := f.store.Acknowledge(ctx, pending[0].ID, commands.Acknowledgment{Result: commands.ResultSuccess, AckedAt: time.Now()}); err != nil {
		t.Fatalf("ack: %v", err)
	}

	outcome, _ := f.controller.Evaluate(ctx, reading(65))
	if outcome.Decision.Action != autowater.ActionNone {
		t.Fatalf("expected no STOP once START is acknowledged, got %+v", outcome)
	}
	outcome, _ = f.controller.Evaluate(ctx, reading(15))
	if outcome.Decision.Action != autowater.ActionStart || !outcome.Dispatched {
		t.Fatalf("expected fresh START, got %+v", outcome)
	}
}

func TestControllerSurfacesDispatchErrors(t *testing.T) {
	f := newControllerFixture(t, stubDevices{"G1": {"D1"}})
	controller, _ := NewController(f.controller.thresholds, f.tracker, failingDispatcher{}, commandsapp.NewGardenLocks(), log.New(io.Discard, "", 0))
	if err := controller.EvaluateReading(context.Background(), reading(15)); err == nil {
		t.Fatalf("expected dispatch error")
	}
}
