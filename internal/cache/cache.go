// Package cache provides the report cache: an in-process LRU with TTL and
// a Redis-backed store for multi-instance deployments.
package cache

import (
	"context"
	"time"
)

// Store is the report cache port. Implementations are best-effort: a miss
// and a cache failure look the same to callers.
type Store interface {
	// Get retrieves a cached value.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value.
	Set(ctx context.Context, key string, data []byte)

	// Delete removes a key.
	Delete(ctx context.Context, key string)

	// DeletePrefix removes every key starting with prefix. Used to
	// invalidate all cached reports of a property on write.
	DeletePrefix(ctx context.Context, prefix string)
}

// Manager handles cache lifecycle and cleanup.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Cleaner interface for caches that support cleanup.
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager.
func NewManager() *Manager {
	return &Manager{
		caches:      make([]Cleaner, 0),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup.
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, cache := range m.caches {
				cache.CleanExpired()
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
	}
}
