package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/finflow/backend/internal/domain/finance"
)

// listEntry is a stored document list with its write timestamp
type listEntry struct {
	documents []finance.Document
	storedAt  time.Time
}

// InMemoryDocumentListCache implements DocumentListCache using an in-memory
// map. Entries past their TTL are still returned, flagged stale, so callers
// can render immediately and refresh in the background. Suitable for
// single-instance deployments and testing.
type InMemoryDocumentListCache struct {
	mu        sync.RWMutex
	entries   map[string]listEntry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// staleRetentionFactor bounds how long a stale entry stays servable.
// Eviction must lag the TTL by a wide margin so readers arriving just
// after expiry still get the stale entry instead of a miss.
const staleRetentionFactor = 10

// NewInMemoryDocumentListCache creates a new in-memory list cache.
// It starts a background goroutine that evicts entries stale past
// staleRetentionFactor times the TTL, keeping the map bounded.
func NewInMemoryDocumentListCache(ttl time.Duration) *InMemoryDocumentListCache {
	c := &InMemoryDocumentListCache{
		entries:  make(map[string]listEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get returns the cached list for a key, or nil when absent. A present entry
// older than the TTL is returned with Stale set rather than dropped.
func (c *InMemoryDocumentListCache) Get(ctx context.Context, key string) (*finance.CachedDocumentList, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, nil
	}

	documents := make([]finance.Document, len(e.documents))
	copy(documents, e.documents)

	return &finance.CachedDocumentList{
		Documents: documents,
		StoredAt:  e.storedAt,
		Stale:     time.Since(e.storedAt) > c.ttl,
	}, nil
}

// Set stores a fresh list for a key
func (c *InMemoryDocumentListCache) Set(ctx context.Context, key string, documents []finance.Document) error {
	stored := make([]finance.Document, len(documents))
	copy(stored, documents)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = listEntry{documents: stored, storedAt: time.Now()}
	return nil
}

// Invalidate removes every entry whose key starts with the given prefix
func (c *InMemoryDocumentListCache) Invalidate(ctx context.Context, keyPrefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, keyPrefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryDocumentListCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically evicts entries too stale to be worth serving
func (c *InMemoryDocumentListCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes entries too stale to be worth serving
func (c *InMemoryDocumentListCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-staleRetentionFactor * c.ttl)
	for key, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

// Ensure InMemoryDocumentListCache implements DocumentListCache
var _ finance.DocumentListCache = (*InMemoryDocumentListCache)(nil)
