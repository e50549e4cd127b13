package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartgarden-cloud/internal/apperr"
	"smartgarden-cloud/internal/thresholds/infrastructure/memory"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

type stubGardens struct{}

func (stubGardens) EnsureGarden(_ context.Context, gardenID string) error {
	if gardenID != "G1" {
		return apperr.ErrNotFound
	}
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(memory.NewRepository(), stubGardens{}, fixedClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func intPtr(v int) *int { return &v }

func TestUpsertCreatesThenUpdatesInPlace(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, UpsertRequest{GardenID: "G1", SensorType: telemetry.SensorSoilMoisture, MinValue: 30, MaxValue: 60, AutoWaterEnabled: true, PumpMaxSeconds: intPtr(45)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.PumpMaxSeconds != 45 {
		t.Fatalf("expected 45, got %d", first.PumpMaxSeconds)
	}

	if _, err := svc.Upsert(ctx, UpsertRequest{GardenID: "G1", SensorType: telemetry.SensorSoilMoisture, MinValue: 20, MaxValue: 50, AutoWaterEnabled: false}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	list, err := svc.List(ctx, "G1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one threshold, got %d", len(list))
	}
	got := list[0]
	if got.MinValue != 20 || got.MaxValue != 50 || got.AutoWaterEnabled || got.PumpMaxSeconds != 45 {
		t.Fatalf("unexpected threshold after update: %+v", got)
	}
}

func TestUpsertDefaultsPumpLimit(t *testing.T) {
	svc := newService(t)
	threshold, err := svc.Upsert(context.Background(), UpsertRequest{GardenID: "G1", SensorType: telemetry.SensorHumidity, MinValue: 10, MaxValue: 90})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if threshold.PumpMaxSeconds != 60 {
		t.Fatalf("expected default 60, got %d", threshold.PumpMaxSeconds)
	}
}

func TestUpsertInvalidRangeLeavesStoredThreshold(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.Upsert(ctx, UpsertRequest{GardenID: "G1", SensorType: telemetry.SensorSoilMoisture, MinValue: 30, MaxValue: 60, AutoWaterEnabled: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_, err := svc.Upsert(ctx, UpsertRequest{GardenID: "G1", SensorType: telemetry.SensorSoilMoisture, MinValue: 70, MaxValue: 60})
	if !errors.Is(err, apperr.ErrInvalidRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
	stored, err := svc.Get(ctx, "G1", telemetry.SensorSoilMoisture)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.MinValue != 30 || stored.MaxValue != 60 {
		t.Fatalf("stored threshold changed: %+v", stored)
	}
}

func TestUpsertUnknownGarden(t *testing.T) {
	svc := newService(t)
	_, err := svc.Upsert(context.Background(), UpsertRequest{GardenID: "G9", SensorType: telemetry.SensorSoilMoisture, MinValue: 1, MaxValue: 2})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPumpMaxSecondsReadsSoilMoisture(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, ok, err := svc.PumpMaxSeconds(ctx, "G1"); err != nil || ok {
		t.Fatalf("expected no limit, got ok=%v err=%v", ok, err)
	}
	if _, err := svc.Upsert(ctx, UpsertRequest{GardenID: "G1", SensorType: telemetry.SensorSoilMoisture, MinValue: 30, MaxValue: 60, PumpMaxSeconds: intPtr(45)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	limit, ok, err := svc.PumpMaxSeconds(ctx, "G1")
	if err != nil || !ok || limit != 45 {
		t.Fatalf("expected 45, got %d ok=%v err=%v", limit, ok, err)
	}
}
