// Package influx mirrors stored readings into InfluxDB for dashboards.
package influx

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sony/gobreaker"

	"smartgarden-cloud/internal/observability/metrics"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

const measurement = "sensor_reading"

// Config describes the Influx target and the breaker that guards it.
type Config struct {
	URL             string
	Token           string
	Org             string
	Bucket          string
	BreakerFailures int
	BreakerOpen     time.Duration
}

// Mirror writes readings as points through a circuit breaker.
type Mirror struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	breaker  *gobreaker.CircuitBreaker
}

// NewMirror connects a mirror.
func NewMirror(cfg Config) (*Mirror, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx mirror: config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Mirror{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		breaker:  newBreaker(cfg.BreakerFailures, cfg.BreakerOpen),
	}, nil
}

func newBreaker(failures int, open time.Duration) *gobreaker.CircuitBreaker {
	if failures <= 0 {
		failures = 5
	}
	if open <= 0 {
		open = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influx-mirror",
		Timeout: open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
	})
}

// Mirror writes one reading. Returns gobreaker.ErrOpenState while the breaker is open.
func (m *Mirror) Mirror(ctx context.Context, reading telemetry.Reading) error {
	point := influxdb2.NewPoint(measurement,
		map[string]string{
			"garden_id":   reading.GardenID,
			"device_id":   reading.DeviceID,
			"sensor_type": string(reading.SensorType),
		},
		map[string]interface{}{"value": reading.Value},
		reading.Timestamp,
	)
	_, err := m.breaker.Execute(func() (any, error) {
		return nil, m.writeAPI.WritePoint(ctx, point)
	})
	if err != nil {
		metrics.IncMirrorWrite(metrics.ResultError)
		return err
	}
	metrics.IncMirrorWrite(metrics.ResultSuccess)
	return nil
}

// Close releases the client.
func (m *Mirror) Close() {
	if m != nil && m.client != nil {
		m.client.Close()
	}
}
