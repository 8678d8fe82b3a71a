package history

import (
	"context"
	"sync"

	"PriceSentinel/internal/model"
)

// MemoryStore keeps the snapshot in memory. It backs tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	snap  model.Snapshot
	saves int
	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewMemoryStore returns a store seeded with a copy of seed.
func NewMemoryStore(seed model.Snapshot) *MemoryStore {
	if seed == nil {
		seed = model.Snapshot{}
	}
	return &MemoryStore{snap: seed.Clone()}
}

func (m *MemoryStore) Load(_ context.Context) model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

func (m *MemoryStore) Save(_ context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.snap = snap.Clone()
	m.saves++
	return nil
}

func (m *MemoryStore) Lock(_ context.Context) error { return nil }

func (m *MemoryStore) Unlock() error { return nil }

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
