package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/storage/memory/v2"
)

// MemoryStorage backs the Storage interface with an in-process store. JSON
// payloads live in a gofiber memory storage; counters are kept under a local
// mutex because the fiber storage API cannot express an atomic
// increment-and-expire over raw bytes. Suitable for single-node deployments
// and tests.
type MemoryStorage struct {
	payloads *memory.Storage

	mu       sync.Mutex
	counters map[string]*counterEntry
}

type counterEntry struct {
	value    int64
	expireAt time.Time // zero means no expiry set yet
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	data, err := s.payloads.Get(key)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(data, val)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if expiresIn < 0 {
		expiresIn = 0
	}
	return s.payloads.Set(key, data, expiresIn)
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	_, hadCounter := s.counters[key]
	delete(s.counters, key)
	s.mu.Unlock()

	data, _ := s.payloads.Get(key)
	if err := s.payloads.Delete(key); err != nil {
		return err
	}
	if len(data) == 0 && !hadCounter {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStorage) Expire(ctx context.Context, key string, expiresAt time.Time) error {
	s.mu.Lock()
	if entry, ok := s.counters[key]; ok {
		entry.expireAt = expiresAt
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	data, err := s.payloads.Get(key)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrNotFound
	}
	return s.payloads.Set(key, data, time.Until(expiresAt))
}

func (s *MemoryStorage) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	return s.incr(key, delta, 0)
}

func (s *MemoryStorage) IncrEx(ctx context.Context, key string, delta int64, expiresIn time.Duration) (int64, error) {
	return s.incr(key, delta, expiresIn)
}

func (s *MemoryStorage) incr(key string, delta int64, expiresIn time.Duration) (int64, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.counters[key]
	if ok && !entry.expireAt.IsZero() && now.After(entry.expireAt) {
		ok = false
	}
	if !ok {
		entry = &counterEntry{}
		s.counters[key] = entry
	}
	entry.value += delta
	// expiry is fixed by the first increment of a window, never reset by
	// later ones
	if expiresIn > 0 && entry.expireAt.IsZero() {
		entry.expireAt = now.Add(expiresIn)
	}
	return entry.value, nil
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		payloads: memory.New(memory.Config{GCInterval: 10 * time.Second}),
		counters: make(map[string]*counterEntry),
	}
}
