package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"hydro-dashboard/internal/models"
	"hydro-dashboard/internal/repository"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

// DefaultCacheTTL is how long a fetched result stays fresh
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	result   *models.ResultSet
	storedAt time.Time
}

// ReadingCache is a time-boxed cache of fetched results keyed by
// QuerySpec.Key(). An entry expires exactly ttl after it was stored.
type ReadingCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewReadingCache creates a cache; a non-positive ttl disables caching
func NewReadingCache(ttl time.Duration) *ReadingCache {
	return &ReadingCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Enabled reports whether the cache stores anything at all
func (c *ReadingCache) Enabled() bool {
	return c.ttl > 0
}

// Get returns a fresh entry for key. Expired entries are dropped.
func (c *ReadingCache) Get(key string) (*models.ResultSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

// Put stores rs under key. Unavailable results are never stored.
func (c *ReadingCache) Put(key string, rs *models.ResultSet) {
	if !c.Enabled() || rs == nil || rs.Unavailable {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: rs, storedAt: c.now()}
}

// Purge drops every expired entry and returns how many were removed
func (c *ReadingCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, fresh or not
func (c *ReadingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cachedRepository is a read-through StationRepository
type cachedRepository struct {
	inner   repository.StationRepository
	cache   *ReadingCache
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCachedRepository wraps inner with a read-through cache.
// Cached results are shared between callers and must not be mutated.
func NewCachedRepository(inner repository.StationRepository, cache *ReadingCache, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) repository.StationRepository {
	if !cache.Enabled() {
		return inner
	}
	return &cachedRepository{
		inner:   inner,
		cache:   cache,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Fetch serves spec from the cache when fresh, otherwise from inner
func (r *cachedRepository) Fetch(ctx context.Context, spec models.QuerySpec) (*models.ResultSet, error) {
	key := spec.Key()
	if rs, ok := r.cache.Get(key); ok {
		r.metrics.RecordCacheLookup(true)
		r.logger.Debug(ctx, "[CACHE_HIT] Serving cached station rows", logging.Fields{
			"key":  key,
			"rows": rs.Len(),
		})
		return rs, nil
	}
	r.metrics.RecordCacheLookup(false)

	rs, err := r.inner.Fetch(ctx, spec)
	if err != nil {
		return rs, err
	}
	r.cache.Put(key, rs)
	return rs, nil
}

// HealthCheck bypasses the cache
func (r *cachedRepository) HealthCheck(ctx context.Context) error {
	return r.inner.HealthCheck(ctx)
}

// CacheJanitor purges expired cache entries on a fixed interval. Without
// it, keys that are never requested again would stay in memory.
type CacheJanitor struct {
	cache  *ReadingCache
	logger *logging.StructuredLogger
	cron   *cron.Cron
	every  time.Duration
}

// NewCacheJanitor schedules a purge of cache every interval
func NewCacheJanitor(cache *ReadingCache, every time.Duration, logger *logging.StructuredLogger) (*CacheJanitor, error) {
	if every <= 0 {
		return nil, fmt.Errorf("cache purge interval must be positive, got %s", every)
	}

	j := &CacheJanitor{
		cache:  cache,
		logger: logger,
		cron:   cron.New(),
		every:  every,
	}
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", every), func() { j.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("failed to schedule cache purge: %w", err)
	}
	return j, nil
}

// Start begins the purge schedule
func (j *CacheJanitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running purge
func (j *CacheJanitor) Stop() {
	<-j.cron.Stop().Done()
}

// Run purges expired entries once and returns how many were dropped
func (j *CacheJanitor) Run(ctx context.Context) int {
	removed := j.cache.Purge()
	j.logger.Debug(ctx, "[CACHE_PURGE] Expired cache entries dropped", logging.Fields{
		"removed":   removed,
		"remaining": j.cache.Len(),
	})
	return removed
}
