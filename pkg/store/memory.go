package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps mappings in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	byKey map[string]string
	byURL map[string]string
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byKey: map[string]string{},
		byURL: map[string]string{},
	}
}

func (m *MemoryStore) GetURLForKey(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.byKey[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) SaveMapping(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byURL[value]; ok {
		return ErrDuplicateURL
	}
	if _, ok := m.byKey[key]; ok {
		return ErrDuplicateKey
	}
	m.byKey[key] = value
	m.byURL[value] = key
	return nil
}

func (m *MemoryStore) GetKeyForURL(ctx context.Context, value string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.byURL[value]
	if !ok {
		return "", ErrNotFound
	}
	return k, nil
}

// ListMappings returns all mappings sorted by key.
func (m *MemoryStore) ListMappings(ctx context.Context) ([]Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Mapping, 0, len(m.byKey))
	for k, v := range m.byKey {
		out = append(out, Mapping{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Len returns the number of stored mappings.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byKey)
}

func (m *MemoryStore) Close() error {
	return nil
}
