package commands

import (
	"errors"
	"testing"
	"time"

	"smartgarden-cloud/internal/apperr"
)

func TestCommandAcknowledgeOnce(t *testing.T) {
	cmd := Command{ID: "cmd-1", Action: ActionStart}
	if !cmd.Pending() {
		t.Fatalf("expected new command to be pending")
	}
	actual := 30
	acked := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	if err := cmd.Acknowledge(Acknowledgment{ActualDurationSeconds: &actual, Result: ResultSuccess, AckedAt: acked}); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if cmd.Pending() || cmd.Ack.AckedAt.Location() != time.UTC {
		t.Fatalf("unexpected ack state: %+v", cmd.Ack)
	}

	err := cmd.Acknowledge(Acknowledgment{Result: ResultFailure})
	if !errors.Is(err, ErrAlreadyAcknowledged) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on second ack, got %v", err)
	}
	if cmd.Ack.Result != ResultSuccess {
		t.Fatalf("second ack must not overwrite result")
	}
}

func TestCommandAcknowledgeRejectsBadInput(t *testing.T) {
	cmd := Command{ID: "cmd-1"}
	if err := cmd.Acknowledge(Acknowledgment{Result: "DONE"}); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("expected bad request for unknown result, got %v", err)
	}
	negative := -1
	if err := cmd.Acknowledge(Acknowledgment{Result: ResultSuccess, ActualDurationSeconds: &negative}); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("expected bad request for negative duration, got %v", err)
	}
	if !cmd.Pending() {
		t.Fatalf("rejected ack must leave command pending")
	}
}

func TestParseEnums(t *testing.T) {
	if a, err := ParseAction(" start "); err != nil || a != ActionStart {
		t.Fatalf("parse action: %v %v", a, err)
	}
	if _, err := ParseAction("PAUSE"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected unknown action, got %v", err)
	}
	if s, err := ParseResultStatus("failure"); err != nil || s != ResultFailure {
		t.Fatalf("parse status: %v %v", s, err)
	}
	if i, err := ParseInitiator("AUTO"); err != nil || i != InitiatedByAuto {
		t.Fatalf("parse initiator: %v %v", i, err)
	}
	if _, err := ParseInitiator("robot"); !errors.Is(err, ErrUnknownInitiator) {
		t.Fatalf("expected unknown initiator, got %v", err)
	}
}

func TestGuardAllows(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	none := PendingSummary{}
	started := PendingSummary{LatestStart: t0}
	stopped := PendingSummary{LatestStart: t0, LatestStop: t0.Add(time.Second)}
	restarted := PendingSummary{LatestStart: t0.Add(time.Minute), LatestStop: t0}

	cases := []struct {
		guard   Guard
		summary PendingSummary
		want    bool
	}{
		{GuardNone, started, true},
		{GuardNoPendingStart, none, true},
		{GuardNoPendingStart, started, false},
		{GuardPendingStart, none, false},
		{GuardPendingStart, started, true},
		{GuardPendingStart, stopped, false},
		{GuardPendingStart, restarted, true},
	}
	for _, tc := range cases {
		if got := tc.guard.Allows(tc.summary); got != tc.want {
			t.Fatalf("%s with %+v: expected %v, got %v", tc.guard, tc.summary, tc.want, got)
		}
	}
}
