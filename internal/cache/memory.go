package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and cache-less runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]string),
	}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	translated, ok := m.entries[key.Hash()]
	return translated, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key Key, translated string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key.Hash()] = translated
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
