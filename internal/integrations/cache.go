package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"
)

const cachePrefix = "cuotas:catalog:"

// ConnectRedis returns a client for addr, or nil when caching is disabled or
// the server cannot be reached.
func ConnectRedis(ctx context.Context, addr, password string, db int) *redis.Client {
	if addr == "" {
		logger.Warn("REDIS_ADDR not set, catalog cache disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis, catalog cache disabled", "addr", addr, "error", err)
		_ = rdb.Close()
		return nil
	}

	logger.Info("Connected to Redis", "addr", addr)
	return rdb
}

// CachedCatalog keeps catalog lookups in Redis. A nil client or any Redis
// error falls through to the wrapped catalog.
type CachedCatalog struct {
	next Catalog
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedCatalog wraps next with a Redis cache
func NewCachedCatalog(next Catalog, rdb *redis.Client, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl}
}

// GetAgreementContext returns the cached agreement context or loads it
func (c *CachedCatalog) GetAgreementContext(ctx context.Context, agreementID string) (schedule.AgreementContext, error) {
	key := cachePrefix + "agreement:" + agreementID

	var cached schedule.AgreementContext
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	agreement, err := c.next.GetAgreementContext(ctx, agreementID)
	if err != nil {
		return schedule.AgreementContext{}, err
	}
	c.set(ctx, key, agreement)
	return agreement, nil
}

// GetProductMeta returns the cached product metadata or loads it
func (c *CachedCatalog) GetProductMeta(ctx context.Context, product string) (ProductMeta, error) {
	key := cachePrefix + "product:" + product

	var cached ProductMeta
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	meta, err := c.next.GetProductMeta(ctx, product)
	if err != nil {
		return ProductMeta{}, err
	}
	c.set(ctx, key, meta)
	return meta, nil
}

// Invalidate drops the cached agreement context
func (c *CachedCatalog) Invalidate(ctx context.Context, agreementID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, cachePrefix+"agreement:"+agreementID).Err(); err != nil {
		logger.Warn("Redis DEL failed", "agreement_id", agreementID, "error", err)
	}
}

func (c *CachedCatalog) get(ctx context.Context, key string, out any) bool {
	if c.rdb == nil {
		return false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Redis GET failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		logger.Warn("Failed to unmarshal cached catalog entry", "key", key, "error", err)
		return false
	}
	return true
}

func (c *CachedCatalog) set(ctx context.Context, key string, value any) {
	if c.rdb == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.Warn("Redis SET failed", "key", key, "error", err)
	}
}
