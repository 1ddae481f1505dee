package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), now: time.Now}
}

// WithClock replaces the time source, used by tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if m.now().After(e.ExpiresAt.Add(staleRetention)) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.ExpiresAt.Equal(e.ExpiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, e Entry) error {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Expire(_ context.Context, at time.Time, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		if e, ok := m.entries[k]; ok && e.ExpiresAt.After(at) {
			e.ExpiresAt = at
			m.entries[k] = e
		}
	}
	m.mu.Unlock()
	return nil
}
