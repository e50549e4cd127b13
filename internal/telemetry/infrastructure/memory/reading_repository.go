package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

// ReadingRepository keeps readings in process memory.
type ReadingRepository struct {
	mu       sync.RWMutex
	nextID   int64
	readings []telemetry.Reading
}

// NewReadingRepository constructs an empty repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{}
}

// Insert stores a reading and assigns its id.
func (r *ReadingRepository) Insert(_ context.Context, reading *telemetry.Reading) error {
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	reading.ID = strconv.FormatInt(r.nextID, 10)
	r.readings = append(r.readings, *reading)
	return nil
}

// History returns readings of a garden in [From, To], newest first.
func (r *ReadingRepository) History(_ context.Context, query telemetry.HistoryQuery) (*telemetry.HistoryPage, error) {
	r.mu.RLock()
	var matched []telemetry.Reading
	for i := len(r.readings) - 1; i >= 0; i-- {
		reading := r.readings[i]
		if reading.GardenID != query.GardenID {
			continue
		}
		if reading.Timestamp.Before(query.From) || reading.Timestamp.After(query.To) {
			continue
		}
		matched = append(matched, reading)
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	page := &telemetry.HistoryPage{Page: query.Page, Size: query.Size, Total: len(matched)}
	offset := query.Page * query.Size
	if offset >= len(matched) {
		return page, nil
	}
	end := offset + query.Size
	if end > len(matched) {
		end = len(matched)
	}
	page.Readings = append([]telemetry.Reading(nil), matched[offset:end]...)
	return page, nil
}
