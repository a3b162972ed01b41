package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryStore implements Store in process memory. It does not survive
// restarts; use it for tests and degraded runs without a cache dir.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*memoryItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*memoryItem)}
}

func (m *MemoryStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if item.expired(time.Now()) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemoryStore) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}
	b := make([]byte, len(value))
	copy(b, value)
	m.mu.Lock()
	m.data[key] = &memoryItem{value: b, expireAt: expireAt}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.data, key)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
