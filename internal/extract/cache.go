package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultCacheTTL             = 10 * time.Minute
	defaultCacheCleanupInterval = 30 * time.Minute
)

// Cache caches extraction results keyed by a hash of the document text,
// so re-submitting the same document does not re-pay the model call.
type Cache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewCache creates an extraction result cache with the given TTL.
// ttl <= 0 uses DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		cache: gocache.New(ttl, defaultCacheCleanupInterval),
		ttl:   ttl,
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *Cache) get(text string) (Result, bool) {
	v, found := c.cache.Get(cacheKey(text))
	if !found {
		return Result{}, false
	}
	res, ok := v.(Result)
	if !ok {
		return Result{}, false
	}
	return res, true
}

func (c *Cache) set(text string, res Result) {
	c.cache.Set(cacheKey(text), res, c.ttl)
}
