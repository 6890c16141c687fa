package services

import (
	"sync"
	"time"

	"combat-service/models"
)

// SnapshotCache is a short-TTL in-memory cache of remote character
// snapshots keyed by character id. Entries expire lazily on read — no
// background sweep, last write wins. Invalidate evicts a single character
// after any cross-service mutation (e.g. an item transfer).
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]cachedSnapshot
	ttl     time.Duration
}

type cachedSnapshot struct {
	snapshot  *models.CharacterSnapshot
	expiresAt time.Time
}

func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[string]cachedSnapshot),
		ttl:     ttl,
	}
}

// Get returns the cached snapshot and true if a live entry exists.
// Expired entries are treated as absent.
func (c *SnapshotCache) Get(characterID string) (*models.CharacterSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[characterID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.snapshot, true
}

// Set stores a snapshot with the configured TTL.
func (c *SnapshotCache) Set(characterID string, snapshot *models.CharacterSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[characterID] = cachedSnapshot{
		snapshot:  snapshot,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate drops a single character's entry.
func (c *SnapshotCache) Invalidate(characterID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, characterID)
}
