package autowater

import (
	thresholds "smartgarden-cloud/internal/thresholds/domain"
)

// Action is the controller's verdict for one reading.
type Action string

const (
	ActionNone  Action = "NONE"
	ActionStart Action = "START"
	ActionStop  Action = "STOP"
)

// Decision is the evaluator output. DurationSeconds is set for starts only.
type Decision struct {
	Action          Action
	DurationSeconds int
}

// None is the no-op decision.
var None = Decision{Action: ActionNone}

// Evaluate applies hysteresis: start below min when idle, stop at or above
// max when running, otherwise hold.
func Evaluate(value float64, threshold thresholds.Threshold, running bool) Decision {
	if !threshold.AutoWaterEnabled {
		return None
	}
	switch {
	case value < threshold.MinValue && !running:
		return Decision{Action: ActionStart, DurationSeconds: threshold.PumpMaxSeconds}
	case value >= threshold.MaxValue && running:
		return Decision{Action: ActionStop}
	default:
		return None
	}
}
