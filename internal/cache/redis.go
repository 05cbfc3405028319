// Package cache wraps github.com/redis/go-redis/v9 for the two things the
// pricing pipeline caches: competitor market bands and model registry blobs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// RedisCache is a thin, typed wrapper over *redis.Client.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// New constructs a RedisCache from a connection address ("host:port").
func New(addr string, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
	}
}

// NewFromClient wraps an already-constructed *redis.Client, useful for
// tests that point at a miniredis instance.
func NewFromClient(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

func bandKey(propertyID string, stayDate time.Time) string {
	return fmt.Sprintf("band:%s:%s", propertyID, stayDate.Format("2006-01-02"))
}

// GetBand returns a cached market band, if present and unexpired.
func (c *RedisCache) GetBand(ctx context.Context, propertyID string, stayDate time.Time) (domain.MarketBand, bool) {
	raw, err := c.client.Get(ctx, bandKey(propertyID, stayDate)).Bytes()
	if err != nil {
		return domain.MarketBand{}, false
	}
	var band domain.MarketBand
	if err := json.Unmarshal(raw, &band); err != nil {
		c.logger.Warn("corrupt cached market band, evicting", zap.String("property_id", propertyID), zap.Error(err))
		c.client.Del(ctx, bandKey(propertyID, stayDate))
		return domain.MarketBand{}, false
	}
	return band, true
}

// SetBand caches a market band with the given TTL.
func (c *RedisCache) SetBand(ctx context.Context, propertyID string, stayDate time.Time, band domain.MarketBand, ttl time.Duration) {
	raw, err := json.Marshal(band)
	if err != nil {
		c.logger.Warn("failed to marshal market band for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, bandKey(propertyID, stayDate), raw, ttl).Err(); err != nil {
		c.logger.Warn("failed to write market band to cache", zap.Error(err))
	}
}

func blobKey(propertyID string, modelType domain.ModelType, version string) string {
	return fmt.Sprintf("model:%s:%s:%s", propertyID, modelType, version)
}

// GetModelBlob returns a cached model artifact payload, if present.
func (c *RedisCache) GetModelBlob(ctx context.Context, propertyID string, modelType domain.ModelType, version string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, blobKey(propertyID, modelType, version)).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

// SetModelBlob caches a model artifact payload with the given TTL.
func (c *RedisCache) SetModelBlob(ctx context.Context, propertyID string, modelType domain.ModelType, version string, payload []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, blobKey(propertyID, modelType, version), payload, ttl).Err(); err != nil {
		c.logger.Warn("failed to write model blob to cache", zap.Error(err))
	}
}

// Ping verifies connectivity, used by the health check endpoint.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
