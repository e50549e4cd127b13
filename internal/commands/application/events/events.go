package events

import "time"

// CommandIssued is emitted for every command queued to a device.
type CommandIssued struct {
	CommandID       string    `json:"commandId"`
	GardenID        string    `json:"gardenId"`
	DeviceID        string    `json:"deviceId"`
	Action          string    `json:"action"`
	DurationSeconds *int      `json:"durationSeconds,omitempty"`
	InitiatedBy     string    `json:"initiatedBy"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// CommandAcknowledged is emitted when a device reports a command result.
type CommandAcknowledged struct {
	CommandID             string    `json:"commandId"`
	GardenID              string    `json:"gardenId"`
	DeviceID              string    `json:"deviceId"`
	Action                string    `json:"action"`
	Result                string    `json:"result"`
	ActualDurationSeconds *int      `json:"actualDurationSeconds,omitempty"`
	OccurredAt            time.Time `json:"occurredAt"`
}
