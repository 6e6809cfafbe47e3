package cryptoscout

import (
	"sync"
	"time"
)

// Cache TTLs per data class. Providers that answer a batch with a single
// cheap call refresh often; providers that fan out one history request per
// asset cache long enough to amortize the fan-out.
const (
	coinGeckoMarketTTL = 5 * time.Minute
	coinCapMarketTTL   = 30 * time.Minute
	sparklineTTL       = 30 * time.Minute

	// defaultRecommendationTTL keys chat grounding to the slower market
	// cadence so chat context expires together with the data it describes.
	defaultRecommendationTTL = 30 * time.Minute
)

type cachedResult[T any] struct {
	value     T
	expiresAt time.Time
}

// resultCache is a process-wide TTL cache keyed by query parameters.
// Expiry is lazy: an expired entry behaves as a miss on the next read and
// is replaced wholesale by the next set. Concurrent misses may both fetch
// and both write; last write wins, which is acceptable because upstream
// values are idempotent.
type resultCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]cachedResult[T]
	now     func() time.Time
}

func newResultCache[T any]() *resultCache[T] {
	return &resultCache[T]{
		entries: map[string]cachedResult[T]{},
		now:     time.Now,
	}
}

func (c *resultCache[T]) get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		var zero T
		return zero, false
	}
	return entry.value, true
}

func (c *resultCache[T]) set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedResult[T]{value: value, expiresAt: c.now().Add(ttl)}
}

// recommendationCache holds the most recent recommendation for chat
// grounding. Each new recommendation overwrites the previous one.
type recommendationCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	result    *RecommendationResult
	expiresAt time.Time
	now       func() time.Time
}

func newRecommendationCache(ttl time.Duration) *recommendationCache {
	if ttl <= 0 {
		ttl = defaultRecommendationTTL
	}
	return &recommendationCache{ttl: ttl, now: time.Now}
}

func (c *recommendationCache) set(result *RecommendationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = result
	c.expiresAt = c.now().Add(c.ttl)
}

func (c *recommendationCache) get() (*RecommendationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil || c.now().After(c.expiresAt) {
		return nil, false
	}
	return c.result, true
}
