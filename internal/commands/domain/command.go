package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartgarden-cloud/internal/apperr"
)

// Action is what a pump command asks a device to do.
type Action string

const (
	ActionStart Action = "START"
	ActionStop  Action = "STOP"
)

// ResultStatus is the outcome a device reports, also used for audit outcomes.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFailure ResultStatus = "FAILURE"
)

// Initiator records who caused a pump decision.
type Initiator string

const (
	InitiatedByAdmin Initiator = "ADMIN"
	InitiatedByUser  Initiator = "USER"
	InitiatedByAuto  Initiator = "AUTO"
)

var (
	ErrCommandNotFound     = fmt.Errorf("command: %w", apperr.ErrNotFound)
	ErrAlreadyAcknowledged = fmt.Errorf("command: already acknowledged: %w", apperr.ErrConflict)
	ErrUnknownAction       = fmt.Errorf("command: unknown action: %w", apperr.ErrBadRequest)
	ErrUnknownResult       = fmt.Errorf("command: unknown result status: %w", apperr.ErrBadRequest)
	ErrUnknownInitiator    = fmt.Errorf("command: unknown initiator: %w", apperr.ErrBadRequest)
)

// ParseAction validates a wire action.
func ParseAction(value string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(value))); a {
	case ActionStart, ActionStop:
		return a, nil
	default:
		return "", ErrUnknownAction
	}
}

// ParseResultStatus validates a wire result status.
func ParseResultStatus(value string) (ResultStatus, error) {
	switch s := ResultStatus(strings.ToUpper(strings.TrimSpace(value))); s {
	case ResultSuccess, ResultFailure:
		return s, nil
	default:
		return "", ErrUnknownResult
	}
}

// ParseInitiator validates a stored initiator value.
func ParseInitiator(value string) (Initiator, error) {
	switch i := Initiator(strings.ToUpper(strings.TrimSpace(value))); i {
	case InitiatedByAdmin, InitiatedByUser, InitiatedByAuto:
		return i, nil
	default:
		return "", ErrUnknownInitiator
	}
}

// Acknowledgment is the terminal state of a command.
type Acknowledgment struct {
	ActualDurationSeconds *int
	Result                ResultStatus
	AckedAt               time.Time
}

// Command is a pump instruction queued for one device.
// A nil Ack means the command is pending.
type Command struct {
	ID              string
	GardenID        string
	DeviceID        string
	Action          Action
	DurationSeconds *int
	CreatedAt       time.Time
	Ack             *Acknowledgment
}

// NewCommandID returns a fresh command identifier.
func NewCommandID() string {
	return "cmd-" + uuid.NewString()
}

// Pending reports whether the command still awaits acknowledgment.
func (c Command) Pending() bool {
	return c.Ack == nil
}

// Acknowledge moves a pending command to its terminal state.
func (c *Command) Acknowledge(ack Acknowledgment) error {
	if c.Ack != nil {
		return ErrAlreadyAcknowledged
	}
	switch ack.Result {
	case ResultSuccess, ResultFailure:
	default:
		return ErrUnknownResult
	}
	if ack.ActualDurationSeconds != nil && *ack.ActualDurationSeconds < 0 {
		return apperr.BadRequest("command: negative duration")
	}
	ack.AckedAt = ack.AckedAt.UTC()
	c.Ack = &ack
	return nil
}
