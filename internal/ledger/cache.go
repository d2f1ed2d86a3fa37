package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ReportCache caches serialized report payloads in Redis with a per-company
// version key. Writes bump the version, which orphans every cached report
// for that company without scanning keys. Cache failures degrade to a
// recompute, never to an error.
type ReportCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewReportCache constructs ReportCache. A nil client disables caching; every
// Get falls through to the builder.
func NewReportCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *ReportCache) versionKey(companyID int64) string {
	return fmt.Sprintf("ledger:v:%d", companyID)
}

func (c *ReportCache) version(ctx context.Context, companyID int64) int64 {
	if c == nil || c.rdb == nil {
		return 0
	}
	v, err := c.rdb.Get(ctx, c.versionKey(companyID)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// Bump invalidates all cached reports for the company.
func (c *ReportCache) Bump(ctx context.Context, companyID int64) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Incr(ctx, c.versionKey(companyID)).Err(); err != nil && c.logger != nil {
		c.logger.Warn("report cache bump failed", "company_id", companyID, "error", err)
	}
}

// GetJSON returns the cached payload for (companyID, key) or computes it via
// build, deduplicating concurrent computations of the same key with
// singleflight. The result is the JSON encoding of build's return value.
func (c *ReportCache) GetJSON(ctx context.Context, companyID int64, key string, build func(context.Context) (any, error)) ([]byte, error) {
	if c == nil || c.rdb == nil {
		value, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	}
	full := fmt.Sprintf("ledger:r:%d:%d:%s", companyID, c.version(ctx, companyID), key)
	if cached, err := c.rdb.Get(ctx, full).Bytes(); err == nil {
		return cached, nil
	}
	payload, err, _ := c.group.Do(full, func() (any, error) {
		value, err := build(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.rdb.Set(ctx, full, encoded, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Warn("report cache set failed", "key", full, "error", err)
		}
		return encoded, nil
	})
	if err != nil {
		return nil, err
	}
	return payload.([]byte), nil
}
