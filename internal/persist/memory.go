package persist

import (
	"context"
	"sync"

	"pageeditor/internal/domain"
)

// MemoryStore is an in-process backend for tests and throwaway sessions.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) LoadConfig(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (m *MemoryStore) SaveConfig(_ context.Context, key string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), doc...)
	m.saves++
	return nil
}

// Saves returns how many times SaveConfig was called.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }
