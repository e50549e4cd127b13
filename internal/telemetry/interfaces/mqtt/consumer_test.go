package mqtt

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"smartgarden-cloud/internal/apperr"
	telemetryapp "smartgarden-cloud/internal/telemetry/application"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingIngester struct {
	requests []telemetryapp.IngestRequest
	err      error
}

func (r *recordingIngester) Ingest(_ context.Context, req telemetryapp.IngestRequest) (*telemetryapp.IngestResult, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &telemetryapp.IngestResult{}, nil
}

func TestConsumerIngestsTopicDevice(t *testing.T) {
	ingester := &recordingIngester{}
	consumer, err := NewConsumer(ingester, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("consumer: %v", err)
	}
	msg := fakeMessage{topic: "garden/devices/D1/data", payload: []byte(`{"sensorType":"SOIL_MOISTURE","value":15}`)}
	if err := consumer.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(ingester.requests) != 1 {
		t.Fatalf("expected one ingest, got %d", len(ingester.requests))
	}
	req := ingester.requests[0]
	if req.DeviceID != "D1" || req.SensorType != "SOIL_MOISTURE" || req.Value == nil || *req.Value != 15 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestConsumerRejectsBadMessages(t *testing.T) {
	ingester := &recordingIngester{err: apperr.ErrNotFound}
	consumer, _ := NewConsumer(ingester, log.New(io.Discard, "", 0))
	ctx := context.Background()

	if err := consumer.Handle(ctx, fakeMessage{topic: "garden/other", payload: []byte(`{}`)}); err == nil {
		t.Fatalf("expected topic error")
	}
	if err := consumer.Handle(ctx, fakeMessage{topic: "garden/devices/D1/data", payload: []byte(`{`)}); err == nil {
		t.Fatalf("expected json error")
	}
	err := consumer.Handle(ctx, fakeMessage{topic: "garden/devices/D9/data", payload: []byte(`{"sensorType":"LIGHT","value":1}`)})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected wrapped not found, got %v", err)
	}
}

func TestDeviceIDFromTopic(t *testing.T) {
	if id, err := DeviceIDFromTopic("site/a/devices/dev-7/data"); err != nil || id != "dev-7" {
		t.Fatalf("unexpected: %s %v", id, err)
	}
	if _, err := DeviceIDFromTopic("garden/devices//data"); err == nil {
		t.Fatalf("expected error for empty device id")
	}
}
