package cache

import (
	"context"
	"sync"
	"time"

	"bookwise/backend/internal/domain"
)

type memoryEntry struct {
	intervals []domain.BusyInterval
	expiresAt time.Time
}

// MemoryCache is a process-local BusyCache. It is safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[Key]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key Key) ([]domain.BusyInterval, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	out := make([]domain.BusyInterval, len(entry.intervals))
	copy(out, entry.intervals)
	return out, true, nil
}

func (c *MemoryCache) Put(ctx context.Context, key Key, intervals []domain.BusyInterval, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultBusyTTL
	}
	stored := make([]domain.BusyInterval, len(intervals))
	copy(stored, intervals)

	c.mu.Lock()
	c.entries[key] = memoryEntry{intervals: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, key Key) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) InvalidateUser(ctx context.Context, userID string) error {
	c.mu.Lock()
	for key := range c.entries {
		if key.UserID == userID {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}
