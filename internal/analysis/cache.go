package analysis

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"stockanalyzer/pkg/model"
)

// Cache holds finished reports for a fixed freshness window. A zero TTL
// disables caching.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]cacheItem
	lastSweep time.Time
}

type cacheItem struct {
	report   *Report
	storedAt time.Time
}

// NewCache creates a report cache
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheItem),
	}
}

// CacheKey identifies a run by tickers (in order), range, horizon and
// strategy. Order is part of the key because it breaks ranking ties.
func CacheKey(tickers []string, rng model.DateRange, horizon int, strategy string) string {
	key := strings.Join(tickers, ",") + "|" + rng.Key()
	if horizon > 0 {
		key += fmt.Sprintf("|h=%d|s=%s", horizon, strategy)
	}
	return key
}

// Get returns a fresh report for key
func (c *Cache) Get(key string) (*Report, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(item.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return item.report, true
}

// Put stores a report under key. At most once per TTL it also drops every
// expired report, so keys that are never read again do not accumulate.
func (c *Cache) Put(key string, r *Report) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.ttl {
		c.sweep(now)
	}
	c.entries[key] = cacheItem{report: r, storedAt: now}
}

// Purge drops expired reports and returns how many were removed
func (c *Cache) Purge() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep(c.now())
}

// sweep drops expired reports. c.mu must be held.
func (c *Cache) sweep(now time.Time) int {
	c.lastSweep = now
	removed := 0
	for key, item := range c.entries {
		if now.Sub(item.storedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[CACHE] purged %d expired reports", removed)
	}
	return removed
}

// Len returns the number of stored reports, fresh or not
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
