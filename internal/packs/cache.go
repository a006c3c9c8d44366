package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache is a read-through Redis cache in front of a Provider. Cache
// failures degrade to the underlying provider: a dead Redis slows pack
// checks down but never fails them.
type Cache struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache wraps the provider with a Redis read-through cache. A zero ttl
// selects the default.
func NewCache(next Provider, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{next: next, client: client, ttl: ttl, logger: logger}
}

func cacheKey(organizationID string) string {
	return "packs:features:" + organizationID
}

// Features returns the organization's pack flags, serving from Redis when
// possible and falling back to the wrapped provider.
func (c *Cache) Features(ctx context.Context, organizationID string) (map[string]bool, error) {
	features, err := c.get(ctx, organizationID)
	if err == nil {
		return features, nil
	}
	if !errors.Is(err, errCacheMiss) {
		c.logger.Warn("pack cache read failed, falling back to store",
			"organization_id", organizationID, "error", err)
	}

	features, err = c.next.Features(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if err := c.set(ctx, organizationID, features); err != nil {
		c.logger.Warn("pack cache write failed",
			"organization_id", organizationID, "error", err)
	}
	return features, nil
}

// Invalidate drops the cached flags for an organization. Called after a
// pack flag changes so the next read sees the new value immediately.
func (c *Cache) Invalidate(ctx context.Context, organizationID string) error {
	if err := c.client.Del(ctx, cacheKey(organizationID)).Err(); err != nil {
		return fmt.Errorf("invalidating pack cache: %w", err)
	}
	return nil
}

func (c *Cache) get(ctx context.Context, organizationID string) (map[string]bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(organizationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var features map[string]bool
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, fmt.Errorf("decoding cached pack features: %w", err)
	}
	return features, nil
}

func (c *Cache) set(ctx context.Context, organizationID string, features map[string]bool) error {
	raw, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("encoding pack features: %w", err)
	}
	return c.client.Set(ctx, cacheKey(organizationID), raw, c.ttl).Err()
}
