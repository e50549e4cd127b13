package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryLog keeps pump logs in process memory.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryLog constructs an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Log appends an entry.
func (l *MemoryLog) Log(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

// ListByGarden returns the newest entries of a garden.
func (l *MemoryLog) ListByGarden(_ context.Context, gardenID string, limit int) ([]Entry, error) {
	l.mu.RLock()
	var result []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].GardenID == gardenID {
			result = append(result, l.entries[i])
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit = clampLimit(limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
