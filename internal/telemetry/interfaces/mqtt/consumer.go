package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"smartgarden-cloud/internal/observability/metrics"
	telemetryapp "smartgarden-cloud/internal/telemetry/application"
)

// DefaultTopic matches every device's reading topic.
const DefaultTopic = "garden/devices/+/data"

// Ingester accepts readings.
type Ingester interface {
	Ingest(ctx context.Context, req telemetryapp.IngestRequest) (*telemetryapp.IngestResult, error)
}

// Consumer feeds MQTT readings into the ingestion service.
type Consumer struct {
	ingester Ingester
	logger   *log.Logger
}

type payload struct {
	SensorType string   `json:"sensorType"`
	Value      *float64 `json:"value"`
	Timestamp  string   `json:"timestamp"`
}

// NewConsumer constructs a consumer.
func NewConsumer(ingester Ingester, logger *log.Logger) (*Consumer, error) {
	if ingester == nil {
		return nil, errors.New("telemetry consumer: nil ingester")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Consumer{ingester: ingester, logger: logger}, nil
}

// Handle ingests one message. Malformed payloads are dropped and reported.
func (c *Consumer) Handle(ctx context.Context, msg paho.Message) error {
	deviceID, err := DeviceIDFromTopic(msg.Topic())
	if err != nil {
		metrics.IncMQTTMessage(metrics.DirectionInbound, metrics.ResultError)
		return err
	}
	var p payload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		metrics.IncMQTTMessage(metrics.DirectionInbound, metrics.ResultError)
		return fmt.Errorf("telemetry consumer: device %s: invalid json: %w", deviceID, err)
	}
	result, err := c.ingester.Ingest(ctx, telemetryapp.IngestRequest{
		DeviceID:   deviceID,
		SensorType: p.SensorType,
		Value:      p.Value,
		Timestamp:  p.Timestamp,
	})
	if err != nil {
		metrics.IncMQTTMessage(metrics.DirectionInbound, metrics.ResultError)
		return fmt.Errorf("telemetry consumer: device %s: %w", deviceID, err)
	}
	metrics.IncMQTTMessage(metrics.DirectionInbound, metrics.ResultSuccess)
	if result.ControlErr != nil {
		c.logger.Printf("telemetry consumer: reading stored, auto-control failed: device=%s", deviceID)
	}
	return nil
}

// DeviceIDFromTopic extracts {id} from .../devices/{id}/data.
func DeviceIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "devices" && parts[i+1] != "" && parts[i+2] == "data" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("telemetry consumer: unexpected topic %q", topic)
}
