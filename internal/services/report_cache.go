package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shopops/portal/internal/logger"
)

const reportGenerationKey = "report:gen"

// ReportCache keeps report results in Redis. Every cached entry is keyed by the
// current generation; writers bump the generation so later reads miss.
// A nil *ReportCache is valid and caches nothing.
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReportCache returns nil when rdb is nil or ttl is not positive.
func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &ReportCache{rdb: rdb, ttl: ttl}
}

// Invalidate makes every cached report stale. Failures are logged; the stale
// entries then live at most one TTL.
func (c *ReportCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, reportGenerationKey).Err(); err != nil {
		logger.Warn("Report cache invalidation failed", zap.Error(err))
	}
}

func (c *ReportCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, reportGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func reportCacheKey(generation int64, report string, r DateRange) string {
	return fmt.Sprintf("report:%d:%s:%s", generation, report, r.CacheKey())
}

// cached serves report from Redis when present and stores fresh results.
// Cache failures are logged and never fail the report.
func cached[T any](ctx context.Context, c *ReportCache, report string, r DateRange, compute func() (*T, error)) (*T, error) {
	if c == nil {
		return compute()
	}
	// Read before computing: a write that lands meanwhile moves readers to a
	// new generation, so this result can never be served after it.
	gen, err := c.generation(ctx)
	if err != nil {
		logger.Warn("Report cache generation read failed", zap.Error(err))
		return compute()
	}
	key := reportCacheKey(gen, report, r)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var hit T
		if jsonErr := json.Unmarshal(raw, &hit); jsonErr == nil {
			return &hit, nil
		}
		logger.Warn("Discarding unreadable report cache entry", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		logger.Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
	}

	result, err := compute()
	if err != nil {
		return nil, err
	}
	if encoded, jsonErr := json.Marshal(result); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			logger.Warn("Report cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return result, nil
}
