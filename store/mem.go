package store

import (
	"context"
	"sync"
)

// MemBackend keeps values in memory only. It stands in for the persisted
// backends in tests and when no writable storage is available (the
// private-browsing degradation: the client keeps working, state just
// does not survive a restart).
type MemBackend struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{values: make(map[string][]byte)}
}

// Read returns the bytes stored for key.
func (m *MemBackend) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.values[key]
	if !ok {
		return nil, ErrNotExist
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores data under key.
func (m *MemBackend) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.values[key] = stored
	return nil
}

// Remove deletes key.
func (m *MemBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys lists all stored keys.
func (m *MemBackend) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys, nil
}
