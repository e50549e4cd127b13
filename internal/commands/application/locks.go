package application

import "sync"

// GardenLocks serializes pump decisions per garden within this process.
type GardenLocks struct {
	mu    sync.Mutex
	locks map[string]*gardenLock
}

type gardenLock struct {
	mu   sync.Mutex
	refs int
}

// NewGardenLocks constructs an empty lock table.
func NewGardenLocks() *GardenLocks {
	return &GardenLocks{locks: make(map[string]*gardenLock)}
}

// Lock blocks until the garden's lock is held and returns its release func.
func (l *GardenLocks) Lock(gardenID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[gardenID]
	if !ok {
		entry = &gardenLock{}
		l.locks[gardenID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, gardenID)
		}
		l.mu.Unlock()
	}
}

func (l *GardenLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
