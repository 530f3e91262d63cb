package provider

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"stockanalyzer/pkg/model"
)

type cacheEntry struct {
	series    *model.RawSeries
	fetchedAt time.Time
}

// CachingProvider wraps a Provider with a time-bounded in-memory cache for
// GetDailyHistory, keyed by symbol and range. Failed fetches are not cached.
type CachingProvider struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	cache     map[string]cacheEntry
	lastSweep time.Time
	hits      int64
	misses    int64
}

// NewCachingProvider creates a caching wrapper whose entries stay fresh for ttl
func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

func (p *CachingProvider) GetDailyHistory(ctx context.Context, symbol string, rng model.DateRange) (*model.RawSeries, error) {
	key := strings.ToUpper(symbol) + "|" + rng.Key()

	p.mu.Lock()
	if entry, ok := p.cache[key]; ok && p.now().Sub(entry.fetchedAt) < p.ttl {
		p.hits++
		p.mu.Unlock()
		return entry.series, nil
	}
	p.misses++
	p.mu.Unlock()

	series, err := p.inner.GetDailyHistory(ctx, symbol, rng)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	now := p.now()
	if now.Sub(p.lastSweep) >= p.ttl {
		p.sweep(now)
	}
	p.cache[key] = cacheEntry{series: series, fetchedAt: now}
	p.mu.Unlock()

	return series, nil
}

// Purge drops expired entries and returns how many were removed.
// Stores also sweep at most once per TTL.
func (p *CachingProvider) Purge() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sweep(p.now())
}

// sweep drops expired entries. p.mu must be held.
func (p *CachingProvider) sweep(now time.Time) int {
	p.lastSweep = now
	removed := 0
	for key, entry := range p.cache {
		if now.Sub(entry.fetchedAt) >= p.ttl {
			delete(p.cache, key)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[CACHE] purged %d expired series", removed)
	}
	return removed
}

// Len returns the number of stored series, fresh or not
func (p *CachingProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// Stats returns cache hit and miss counts
func (p *CachingProvider) Stats() (hits, misses int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}
