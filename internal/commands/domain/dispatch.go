package commands

import (
	"context"
	"time"
)

// BroadcastOrigin marks an audit entry that applies to every device of a garden.
const BroadcastOrigin = "broadcast"

// Guard is a precondition re-checked by the store in the same unit of work
// that writes the dispatch.
type Guard int

const (
	// GuardNone always writes.
	GuardNone Guard = iota
	// GuardNoPendingStart writes only when no pending START exists in the window.
	GuardNoPendingStart
	// GuardPendingStart writes only when a pending START exists in the window and
	// no pending STOP was issued at or after it.
	GuardPendingStart
)

func (g Guard) String() string {
	switch g {
	case GuardNoPendingStart:
		return "no_pending_start"
	case GuardPendingStart:
		return "pending_start"
	default:
		return "none"
	}
}

// PendingSummary holds the newest pending START and STOP of a garden.
// Zero times mean none.
type PendingSummary struct {
	LatestStart time.Time
	LatestStop  time.Time
}

// Running reports whether a pending START exists.
func (s PendingSummary) Running() bool {
	return !s.LatestStart.IsZero()
}

// Allows evaluates a guard against the pending summary.
func (g Guard) Allows(summary PendingSummary) bool {
	switch g {
	case GuardNoPendingStart:
		return !summary.Running()
	case GuardPendingStart:
		if !summary.Running() {
			return false
		}
		return summary.LatestStop.IsZero() || summary.LatestStop.Before(summary.LatestStart)
	default:
		return true
	}
}

// Dispatch is one pump decision: the audit facts plus the commands fanned out
// to the garden's enabled devices.
type Dispatch struct {
	ID              string
	GardenID        string
	Origin          string
	Action          Action
	DurationSeconds *int
	InitiatedBy     Initiator
	Actor           string
	Status          ResultStatus
	Guard           Guard
	GuardSince      time.Time
	IssuedAt        time.Time
	Commands        []Command
}

// Store persists commands. Commit must write the dispatch commands and its
// audit entry atomically and report applied=false when the guard rejects it.
type Store interface {
	Commit(ctx context.Context, dispatch Dispatch) (applied bool, err error)
	Pending(ctx context.Context, deviceID string) ([]Command, error)
	Get(ctx context.Context, id string) (*Command, error)
	Acknowledge(ctx context.Context, id string, ack Acknowledgment) (*Command, error)
	PendingSummary(ctx context.Context, gardenID string, since time.Time) (PendingSummary, error)
}
