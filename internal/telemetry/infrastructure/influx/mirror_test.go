package influx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

func testReading() telemetry.Reading {
	return telemetry.Reading{
		DeviceID:   "D1",
		GardenID:   "G1",
		SensorType: telemetry.SensorSoilMoisture,
		Value:      15,
		Timestamp:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMirrorWritesLineProtocol(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/api/v2/write") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	mirror, err := NewMirror(Config{URL: server.URL, Token: "t", Org: "o", Bucket: "b"})
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	defer mirror.Close()

	if err := mirror.Mirror(context.Background(), testReading()); err != nil {
		t.Fatalf("mirror write: %v", err)
	}
	if !strings.HasPrefix(body, "sensor_reading,") || !strings.Contains(body, "garden_id=G1") ||
		!strings.Contains(body, "sensor_type=SOIL_MOISTURE") || !strings.Contains(body, "value=15") {
		t.Fatalf("unexpected line protocol: %q", body)
	}
}

func TestMirrorBreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	mirror, err := NewMirror(Config{URL: server.URL, Token: "t", Org: "o", Bucket: "b", BreakerFailures: 2, BreakerOpen: time.Minute})
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	defer mirror.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := mirror.Mirror(ctx, testReading()); err == nil {
			t.Fatalf("expected write error")
		}
	}
	before := atomic.LoadInt32(&hits)
	if err := mirror.Mirror(ctx, testReading()); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Fatalf("open breaker must not reach the server")
	}
}
