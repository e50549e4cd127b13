package telemetry

import (
	"fmt"
	"strings"

	"smartgarden-cloud/internal/apperr"
)

// SensorType is the closed set of quantities a device can report.
type SensorType string

const (
	SensorSoilMoisture SensorType = "SOIL_MOISTURE"
	SensorTemperature  SensorType = "TEMPERATURE"
	SensorHumidity     SensorType = "HUMIDITY"
	SensorLight        SensorType = "LIGHT"
)

// ErrUnknownSensorType is returned for sensor types outside the closed set.
var ErrUnknownSensorType = fmt.Errorf("telemetry: unknown sensor type: %w", apperr.ErrBadRequest)

// SensorTypes lists every supported sensor type.
func SensorTypes() []SensorType {
	return []SensorType{SensorSoilMoisture, SensorTemperature, SensorHumidity, SensorLight}
}

// ParseSensorType validates a wire value. Matching is case-insensitive.
func ParseSensorType(value string) (SensorType, error) {
	candidate := SensorType(strings.ToUpper(strings.TrimSpace(value)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownSensorType, value)
	}
	return candidate, nil
}

// Valid reports whether s is a member of the closed set.
func (s SensorType) Valid() bool {
	switch s {
	case SensorSoilMoisture, SensorTemperature, SensorHumidity, SensorLight:
		return true
	default:
		return false
	}
}
