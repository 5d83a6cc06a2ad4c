package cache

import (
	"context"
	"time"
)

// MemoryStore adapts the in-process LRU cache to the Store port. It is the
// default when no Redis address is configured.
type MemoryStore struct {
	lru *LRUCache[[]byte]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(maxSize int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: NewLRUCache[[]byte](maxSize, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	return s.lru.Get(key)
}

func (s *MemoryStore) Set(_ context.Context, key string, data []byte) {
	s.lru.Set(key, data)
}

func (s *MemoryStore) Delete(_ context.Context, key string) {
	s.lru.Delete(key)
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) {
	s.lru.DeletePrefix(prefix)
}

// CleanExpired implements Cleaner.
func (s *MemoryStore) CleanExpired() int {
	return s.lru.CleanExpired()
}
