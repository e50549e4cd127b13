package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	commands "smartgarden-cloud/internal/commands/domain"
)

// Entry is one pump decision as recorded in the append-only pump log.
type Entry struct {
	ID              string
	GardenID        string
	DeviceID        string
	Action          commands.Action
	StartedAt       time.Time
	DurationSeconds *int
	InitiatedBy     commands.Initiator
	Actor           string
	Status          commands.ResultStatus
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Reader lists audit entries for a garden, newest first.
type Reader interface {
	ListByGarden(ctx context.Context, gardenID string, limit int) ([]Entry, error)
}

// NewID generates a pump log id.
func NewID() string {
	return "plog-" + uuid.NewString()
}

// FromDispatch builds the entry recorded for a dispatch.
func FromDispatch(d commands.Dispatch) Entry {
	origin := d.Origin
	if origin == "" {
		origin = commands.BroadcastOrigin
	}
	id := d.ID
	if id == "" {
		id = NewID()
	}
	status := d.Status
	if status == "" {
		status = commands.ResultSuccess
	}
	return Entry{
		ID:              id,
		GardenID:        d.GardenID,
		DeviceID:        origin,
		Action:          d.Action,
		StartedAt:       d.IssuedAt.UTC(),
		DurationSeconds: d.DurationSeconds,
		InitiatedBy:     d.InitiatedBy,
		Actor:           d.Actor,
		Status:          status,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 1000
	}
	return limit
}
