package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	text      string
	expiresAt time.Time
}

// MemoryStore is the default in-process cache backend: a map guarded by an
// RWMutex with lazy expiry on read and a periodic background sweep to bound
// memory in long-running processes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-memory store. sweepInterval controls how
// often expired entries are purged in the background; zero disables the
// sweep (lazy expiry on read still applies).
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	}
	return s
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry in between.
		if cur, ok := s.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.text, true, nil
}

// Put implements Store
func (s *MemoryStore) Put(_ context.Context, key, text string, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{text: text, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Len returns the current entry count, expired entries included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the background sweep
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
