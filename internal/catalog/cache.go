package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "catalog:tools:"

// CachedAccessor is a Redis read-through cache in front of another Accessor.
// Redis failures are logged and fall through to the backing accessor; they
// never fail a catalog read.
type CachedAccessor struct {
	next   Accessor
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedAccessor(next Accessor, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedAccessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedAccessor{next: next, rdb: rdb, ttl: ttl, logger: logger.Named("catalog-cache")}
}

func (c *CachedAccessor) ListTools(ctx context.Context) ([]Tool, error) {
	key := c.key(ctx)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var tools []Tool
		uerr := json.Unmarshal(raw, &tools)
		if uerr == nil {
			return tools, nil
		}
		c.logger.Warn("discarding corrupt catalog cache entry", zap.String("key", key), zap.Error(uerr))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("catalog cache read failed", zap.Error(err))
	}

	tools, err := c.next.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	if encoded, merr := json.Marshal(tools); merr == nil {
		if serr := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); serr != nil {
			c.logger.Warn("catalog cache write failed", zap.Error(serr))
		}
	}
	return tools, nil
}

// CatalogVersion delegates to the backing accessor when it can version.
func (c *CachedAccessor) CatalogVersion(ctx context.Context) (string, error) {
	if v, ok := c.next.(Versioner); ok {
		return v.CatalogVersion(ctx)
	}
	return "", nil
}

// key embeds the catalog version when the backing accessor exposes one so a
// catalog edit invalidates the entry immediately.
func (c *CachedAccessor) key(ctx context.Context) string {
	v, ok := c.next.(Versioner)
	if !ok {
		return cacheKeyPrefix + "all"
	}
	version, err := v.CatalogVersion(ctx)
	if err != nil || version == "" {
		return cacheKeyPrefix + "all"
	}
	return cacheKeyPrefix + version
}
