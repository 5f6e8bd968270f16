// Package cache memoizes per-day availability facts.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"costamar/internal/metrics"
	"costamar/internal/models"
)

// SnapshotCache memoizes AvailabilityDay values keyed by
// (category, date, excludeBookingID). The exclusion ID is part of the key
// because re-editing booking B must see B's own instances as available.
//
// Growth is unbounded on purpose: InvalidateAll runs on every category
// switch and on every successful booking mutation, so entries never outlive
// the data they describe.
type SnapshotCache struct {
	entries map[string]models.AvailabilityDay
	mu      sync.RWMutex
}

// New creates an empty snapshot cache.
func New() *SnapshotCache {
	return &SnapshotCache{entries: make(map[string]models.AvailabilityDay)}
}

func key(category models.ResourceCategory, date time.Time, excludeBookingID int64) string {
	return fmt.Sprintf("%s|%s|%d", category, models.DateKey(date), excludeBookingID)
}

// Get returns the cached day, if present.
func (c *SnapshotCache) Get(category models.ResourceCategory, date time.Time, excludeBookingID int64) (models.AvailabilityDay, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	day, ok := c.entries[key(category, date, excludeBookingID)]
	if ok {
		metrics.IncCacheHit()
	} else {
		metrics.IncCacheMiss()
	}
	return day, ok
}

// Put stores the day snapshot.
func (c *SnapshotCache) Put(category models.ResourceCategory, date time.Time, excludeBookingID int64, day models.AvailabilityDay) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(category, date, excludeBookingID)] = day
}

// InvalidateAll discards every cached snapshot. Idempotent.
func (c *SnapshotCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.AvailabilityDay)
}

// InvalidateCategory discards all snapshots for one category.
func (c *SnapshotCache) InvalidateCategory(category models.ResourceCategory) {
	prefix := string(category) + "|"
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached snapshots.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
