package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/metrics"
	"github.com/mikelady/showcase/internal/services"
)

// DefaultLinkTTL is how long a resolved link is reused.
const DefaultLinkTTL = 24 * time.Hour

const keyPrefix = "showcase:link:"

// Compile-time interface compliance check
var _ services.LinkResolver = (*CachingResolver)(nil)

// CachingResolver remembers resolved links in Redis. Redis failures are logged and the
// wrapped resolver is used directly, so Resolve still never fails.
type CachingResolver struct {
	next   services.LinkResolver
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger

	// skip reports results that must not be cached, such as generic fallback URLs.
	skip func(resolved string) bool
}

// NewCachingResolver wraps next with a Redis cache. skip may be nil.
func NewCachingResolver(next services.LinkResolver, client redis.Cmdable, ttl time.Duration, skip func(string) bool, logger *zap.Logger) *CachingResolver {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingResolver{next: next, client: client, ttl: ttl, skip: skip, logger: logger}
}

// Resolve returns the cached link for fileHandle or resolves and caches it.
func (c *CachingResolver) Resolve(ctx context.Context, fileHandle string) string {
	key := keyPrefix + fileHandle

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil && cached != "":
		metrics.LinkCacheOperations.WithLabelValues("hit").Inc()
		return cached
	case errors.Is(err, redis.Nil):
		metrics.LinkCacheOperations.WithLabelValues("miss").Inc()
	case err != nil:
		metrics.LinkCacheOperations.WithLabelValues("error").Inc()
		c.logger.Warn("link cache read failed", zap.String("handle", fileHandle), zap.Error(err))
	}

	resolved := c.next.Resolve(ctx, fileHandle)
	if c.skip(resolved) {
		return resolved
	}

	if err := c.client.Set(ctx, key, resolved, c.ttl).Err(); err != nil {
		metrics.LinkCacheOperations.WithLabelValues("error").Inc()
		c.logger.Warn("link cache write failed", zap.String("handle", fileHandle), zap.Error(err))
		return resolved
	}
	metrics.LinkCacheOperations.WithLabelValues("store").Inc()
	return resolved
}

// Forget drops a cached link, for example after the file was replaced.
func (c *CachingResolver) Forget(ctx context.Context, fileHandle string) error {
	return c.client.Del(ctx, keyPrefix+fileHandle).Err()
}
