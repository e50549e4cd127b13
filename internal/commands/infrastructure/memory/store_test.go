package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartgarden-cloud/internal/audit"
	commands "smartgarden-cloud/internal/commands/domain"
)

func newDispatch(gardenID string, action commands.Action, guard commands.Guard, at time.Time, deviceIDs ...string) commands.Dispatch {
	d := commands.Dispatch{
		GardenID:    gardenID,
		Action:      action,
		InitiatedBy: commands.InitiatedByAuto,
		Actor:       "auto",
		Status:      commands.ResultSuccess,
		Guard:       guard,
		GuardSince:  at.Add(-15 * time.Minute),
		IssuedAt:    at,
	}
	for _, id := range deviceIDs {
		d.Commands = append(d.Commands, commands.Command{
			ID:        commands.NewCommandID(),
			GardenID:  gardenID,
			DeviceID:  id,
			Action:    action,
			CreatedAt: at,
		})
	}
	return d
}

func TestStoreCommitWritesCommandsAndAudit(t *testing.T) {
	ctx := context.Background()
	logs := audit.NewMemoryLog()
	store, err := NewStore(logs)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	applied, err := store.Commit(ctx, newDispatch("G1", commands.ActionStart, commands.GuardNoPendingStart, now, "D1", "D2"))
	if err != nil || !applied {
		t.Fatalf("commit: applied=%v err=%v", applied, err)
	}
	pending, _ := store.Pending(ctx, "D1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending for D1, got %d", len(pending))
	}
	entries, _ := logs.ListByGarden(ctx, "G1", 10)
	if len(entries) != 1 || entries[0].DeviceID != commands.BroadcastOrigin {
		t.Fatalf("expected one broadcast audit entry, got %+v", entries)
	}

	applied, err = store.Commit(ctx, newDispatch("G1", commands.ActionStart, commands.GuardNoPendingStart, now.Add(time.Second), "D1", "D2"))
	if err != nil || applied {
		t.Fatalf("expected guard rejection, applied=%v err=%v", applied, err)
	}
	entries, _ = logs.ListByGarden(ctx, "G1", 10)
	if len(entries) != 1 {
		t.Fatalf("rejected dispatch must not write audit, got %d entries", len(entries))
	}
}

func TestStorePendingOrderAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(audit.NewMemoryLog())
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := newDispatch("G1", commands.ActionStart, commands.GuardNone, now, "D1")
	second := newDispatch("G1", commands.ActionStop, commands.GuardNone, now.Add(time.Minute), "D1")
	if _, err := store.Commit(ctx, first); err != nil {
		t.Fatalf("commit first: %v", err)
	}
	if _, err := store.Commit(ctx, second); err != nil {
		t.Fatalf("commit second: %v", err)
	}

	pending, _ := store.Pending(ctx, "D1")
	if len(pending) != 2 || pending[0].Action != commands.ActionStart || pending[1].Action != commands.ActionStop {
		t.Fatalf("unexpected pending order: %+v", pending)
	}

	id := first.Commands[0].ID
	if _, err := store.Acknowledge(ctx, id, commands.Acknowledgment{Result: commands.ResultSuccess, AckedAt: now}); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if _, err := store.Acknowledge(ctx, id, commands.Acknowledgment{Result: commands.ResultSuccess, AckedAt: now}); !errors.Is(err, commands.ErrAlreadyAcknowledged) {
		t.Fatalf("expected already acknowledged, got %v", err)
	}
	if _, err := store.Acknowledge(ctx, "cmd-missing", commands.Acknowledgment{Result: commands.ResultSuccess}); !errors.Is(err, commands.ErrCommandNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	summary, _ := store.PendingSummary(ctx, "G1", now.Add(-time.Hour))
	if summary.Running() || summary.LatestStop.IsZero() {
		t.Fatalf("unexpected summary after ack: %+v", summary)
	}
	got, _ := store.Get(ctx, id)
	if got == nil || got.Pending() {
		t.Fatalf("expected acknowledged command, got %+v", got)
	}
	if missing, err := store.Get(ctx, "cmd-missing"); missing != nil || err != nil {
		t.Fatalf("expected nil,nil for unknown id, got %v %v", missing, err)
	}
}

func TestStoreSummaryIgnoresStaleCommands(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(audit.NewMemoryLog())
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if _, err := store.Commit(ctx, newDispatch("G1", commands.ActionStart, commands.GuardNone, now.Add(-20*time.Minute), "D1")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	summary, _ := store.PendingSummary(ctx, "G1", now.Add(-15*time.Minute))
	if summary.Running() {
		t.Fatalf("stale START must not count as running")
	}
	applied, err := store.Commit(ctx, newDispatch("G1", commands.ActionStart, commands.GuardNoPendingStart, now, "D1"))
	if err != nil || !applied {
		t.Fatalf("expected new START after stale one, applied=%v err=%v", applied, err)
	}
}
