package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"smartgarden-cloud/internal/audit"
	commands "smartgarden-cloud/internal/commands/domain"
)

// Store keeps commands in memory and writes pump logs to an audit logger
// under the same mutex as the command insert.
type Store struct {
	mu       sync.Mutex
	commands []*commands.Command
	byID     map[string]*commands.Command
	audit    audit.Logger
}

// NewStore constructs an in-memory command store.
func NewStore(auditLogger audit.Logger) (*Store, error) {
	if auditLogger == nil {
		return nil, errors.New("command store: nil audit logger")
	}
	return &Store{byID: make(map[string]*commands.Command), audit: auditLogger}, nil
}

// Commit writes the dispatch when its guard allows it.
func (s *Store) Commit(ctx context.Context, dispatch commands.Dispatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !dispatch.Guard.Allows(s.summaryLocked(dispatch.GardenID, dispatch.GuardSince)) {
		return false, nil
	}
	for _, cmd := range dispatch.Commands {
		if _, exists := s.byID[cmd.ID]; exists {
			return false, errors.New("command store: duplicate command id " + cmd.ID)
		}
	}
	if err := s.audit.Log(ctx, audit.FromDispatch(dispatch)); err != nil {
		return false, err
	}
	for _, cmd := range dispatch.Commands {
		stored := cloneCommand(cmd)
		s.commands = append(s.commands, &stored)
		s.byID[stored.ID] = &stored
	}
	return true, nil
}

// Pending returns the device's unacknowledged commands in creation order.
func (s *Store) Pending(_ context.Context, deviceID string) ([]commands.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []commands.Command
	for _, cmd := range s.commands {
		if cmd.DeviceID == deviceID && cmd.Pending() {
			result = append(result, cloneCommand(*cmd))
		}
	}
	return result, nil
}

// Get loads a command by id.
func (s *Store) Get(_ context.Context, id string) (*commands.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	copied := cloneCommand(*cmd)
	return &copied, nil
}

// Acknowledge transitions a pending command.
func (s *Store) Acknowledge(_ context.Context, id string, ack commands.Acknowledgment) (*commands.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.byID[id]
	if !ok {
		return nil, commands.ErrCommandNotFound
	}
	if err := cmd.Acknowledge(ack); err != nil {
		return nil, err
	}
	copied := cloneCommand(*cmd)
	return &copied, nil
}

// PendingSummary reports the newest pending START and STOP created after since.
func (s *Store) PendingSummary(_ context.Context, gardenID string, since time.Time) (commands.PendingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked(gardenID, since), nil
}

func (s *Store) summaryLocked(gardenID string, since time.Time) commands.PendingSummary {
	var summary commands.PendingSummary
	for _, cmd := range s.commands {
		if cmd.GardenID != gardenID || !cmd.Pending() || !cmd.CreatedAt.After(since) {
			continue
		}
		switch cmd.Action {
		case commands.ActionStart:
			if cmd.CreatedAt.After(summary.LatestStart) {
				summary.LatestStart = cmd.CreatedAt
			}
		case commands.ActionStop:
			if cmd.CreatedAt.After(summary.LatestStop) {
				summary.LatestStop = cmd.CreatedAt
			}
		}
	}
	return summary
}

func cloneCommand(cmd commands.Command) commands.Command {
	if cmd.DurationSeconds != nil {
		v := *cmd.DurationSeconds
		cmd.DurationSeconds = &v
	}
	if cmd.Ack != nil {
		ack := *cmd.Ack
		if ack.ActualDurationSeconds != nil {
			v := *ack.ActualDurationSeconds
			ack.ActualDurationSeconds = &v
		}
		cmd.Ack = &ack
	}
	return cmd
}
