package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"smartgarden-cloud/internal/apperr"
	masterdataapp "smartgarden-cloud/internal/masterdata/application"
	masterdata "smartgarden-cloud/internal/masterdata/domain"
	masterdatamemory "smartgarden-cloud/internal/masterdata/infrastructure/memory"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
	telemetrymemory "smartgarden-cloud/internal/telemetry/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingEvaluator struct {
	readings []telemetry.Reading
	err      error
}

func (e *recordingEvaluator) EvaluateReading(_ context.Context, reading telemetry.Reading) error {
	e.readings = append(e.readings, reading)
	return e.err
}

type failingMirror struct{ calls int }

func (m *failingMirror) Mirror(context.Context, telemetry.Reading) error {
	m.calls++
	return errors.New("influx down")
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newIngestFixture(t *testing.T, evaluator *recordingEvaluator, opts ...Option) (*Service, *masterdataapp.Service, *telemetrymemory.ReadingRepository) {
	t.Helper()
	ctx := context.Background()
	directory, err := masterdataapp.NewService(
		masterdatamemory.NewGardenRepository(),
		masterdatamemory.NewDeviceRepository(),
		masterdataapp.WithEntropy(bytes.NewReader(bytes.Repeat([]byte{1}, 64))),
		masterdataapp.WithClock(fixedClock{now: testNow.Add(-time.Hour)}),
		masterdataapp.WithBcryptCost(bcrypt.MinCost),
	)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	if _, err := directory.CreateGarden(ctx, masterdata.Garden{ID: "G1", Name: "Backyard"}); err != nil {
		t.Fatalf("garden: %v", err)
	}
	if _, _, err := directory.RegisterDevice(ctx, "D1", "G1"); err != nil {
		t.Fatalf("device: %v", err)
	}
	repo := telemetrymemory.NewReadingRepository()
	opts = append([]Option{WithClock(fixedClock{now: testNow}), WithLogger(log.New(io.Discard, "", 0))}, opts...)
	svc, err := NewService(repo, directory, directory, evaluator, opts...)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, directory, repo
}

func floatPtr(v float64) *float64 { return &v }

func TestIngestStoresTouchesAndEvaluates(t *testing.T) {
	evaluator := &recordingEvaluator{}
	svc, directory, _ := newIngestFixture(t, evaluator)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{DeviceID: "D1", SensorType: "soil_moisture", Value: floatPtr(15)})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.ControlErr != nil || result.Reading.ID == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Reading.Timestamp.Equal(testNow) || result.Reading.GardenID != "G1" {
		t.Fatalf("expected server time and garden from device, got %+v", result.Reading)
	}
	if len(evaluator.readings) != 1 || evaluator.readings[0].SensorType != telemetry.SensorSoilMoisture {
		t.Fatalf("expected evaluation of stored reading, got %+v", evaluator.readings)
	}
	device, _ := directory.GetDevice(ctx, "D1")
	if device.LastSeen == nil || !device.LastSeen.Equal(testNow) {
		t.Fatalf("expected last seen updated, got %v", device.LastSeen)
	}
}

func TestIngestControlFailureKeepsReading(t *testing.T) {
	evaluator := &recordingEvaluator{err: errors.New("dispatch failed")}
	mirror := &failingMirror{}
	svc, _, _ := newIngestFixture(t, evaluator, WithMirror(mirror))
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{DeviceID: "D1", SensorType: "SOIL_MOISTURE", Value: floatPtr(15)})
	if err != nil {
		t.Fatalf("ingest must succeed when control fails: %v", err)
	}
	if result.ControlErr == nil {
		t.Fatalf("expected control error to be reported")
	}
	if mirror.calls != 1 {
		t.Fatalf("expected mirror attempt, got %d", mirror.calls)
	}
	page, err := svc.History(ctx, HistoryRequest{GardenID: "G1"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected stored reading, got %d", page.Total)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	svc, directory, _ := newIngestFixture(t, &recordingEvaluator{})
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, IngestRequest{DeviceID: "D1", SensorType: "PH", Value: floatPtr(7)}); !errors.Is(err, telemetry.ErrUnknownSensorType) {
		t.Fatalf("expected unknown sensor type, got %v", err)
	}
	if _, err := svc.Ingest(ctx, IngestRequest{DeviceID: "D1", SensorType: "LIGHT"}); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("expected missing value rejected, got %v", err)
	}
	if _, err := svc.Ingest(ctx, IngestRequest{DeviceID: "D9", SensorType: "LIGHT", Value: floatPtr(1)}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected unknown device, got %v", err)
	}
	if _, err := directory.SetDeviceEnabled(ctx, "D1", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := svc.Ingest(ctx, IngestRequest{DeviceID: "D1", SensorType: "LIGHT", Value: floatPtr(1)}); !errors.Is(err, ErrDeviceDisabled) {
		t.Fatalf("expected disabled device rejected, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	fallback := testNow
	cases := []struct {
		in   string
		want time.Time
	}{
		{"", fallback},
		{"not-a-time", fallback},
		{"2024-04-30T08:15:00Z", time.Date(2024, 4, 30, 8, 15, 0, 0, time.UTC)},
		{"2024-04-30T10:15:00+02:00", time.Date(2024, 4, 30, 8, 15, 0, 0, time.UTC)},
		{"2024-04-30T08:15:00", time.Date(2024, 4, 30, 8, 15, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := ParseTimestamp(tc.in, fallback); !got.Equal(tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestHistoryPagingAndDefaults(t *testing.T) {
	svc, _, _ := newIngestFixture(t, &recordingEvaluator{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ts := testNow.Add(-time.Duration(i+1) * time.Hour).Format(time.RFC3339)
		if _, err := svc.Ingest(ctx, IngestRequest{DeviceID: "D1", SensorType: "TEMPERATURE", Value: floatPtr(float64(20 + i)), Timestamp: ts}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	old := testNow.Add(-48 * time.Hour).Format(time.RFC3339)
	if _, err := svc.Ingest(ctx, IngestRequest{DeviceID: "D1", SensorType: "TEMPERATURE", Value: floatPtr(1), Timestamp: old}); err != nil {
		t.Fatalf("ingest old: %v", err)
	}

	page, err := svc.History(ctx, HistoryRequest{GardenID: "G1", Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if page.Total != 5 || len(page.Readings) != 2 || page.Readings[0].Value != 22 {
		t.Fatalf("unexpected page: total=%d readings=%+v", page.Total, page.Readings)
	}

	page, _ = svc.History(ctx, HistoryRequest{GardenID: "G1", Size: 10000})
	if page.Size != MaxHistorySize {
		t.Fatalf("expected size capped at %d, got %d", MaxHistorySize, page.Size)
	}
	if _, err := svc.History(ctx, HistoryRequest{GardenID: "G1", From: testNow, To: testNow.Add(-time.Hour)}); !errors.Is(err, apperr.ErrInvalidRange) {
		t.Fatalf("expected invalid window, got %v", err)
	}
	if _, err := svc.History(ctx, HistoryRequest{GardenID: "missing"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected unknown garden, got %v", err)
	}
}
