package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileEntry struct {
	Value    []byte    `json:"value"`
	ExpireAt time.Time `json:"expire_at,omitempty"`
}

// FileStore implements Store backed by a single JSON file so cached state
// survives process restarts. Writes go through a temp file and rename.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]*fileEntry
}

// NewFileStore opens (or creates) the store file under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	s := &FileStore{
		path: filepath.Join(dir, "cache.json"),
		data: make(map[string]*fileEntry),
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	// A corrupt cache file is not fatal, start empty.
	if err := json.Unmarshal(b, &s.data); err != nil {
		s.data = make(map[string]*fileEntry)
	}
	return s, nil
}

func (s *FileStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.ExpireAt.IsZero() && time.Now().After(e.ExpireAt) {
		delete(s.data, key)
		return nil, ErrCacheMiss
	}
	return e.Value, nil
}

func (s *FileStore) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &fileEntry{Value: value}
	if ttl > 0 {
		e.ExpireAt = time.Now().Add(ttl)
	}
	s.data[key] = e
	return s.flushLocked()
}

func (s *FileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return s.flushLocked()
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	b, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
