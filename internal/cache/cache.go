// Package cache memoizes computed balance views in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/groupledger/internal/metrics"
)

const keyPrefix = "groupledger:balances:"

// DefaultTTL bounds how long a view survives if an invalidation is lost.
const DefaultTTL = 5 * time.Minute

// BalanceCache stores one JSON-encoded view per group.
type BalanceCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewBalanceCache returns a cache on client. ttl <= 0 means DefaultTTL.
func NewBalanceCache(client redis.UniversalClient, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BalanceCache{client: client, ttl: ttl}
}

func key(groupID string) string {
	return keyPrefix + groupID
}

// Get decodes the cached view for groupID into dst and reports whether it was present.
func (c *BalanceCache) Get(ctx context.Context, groupID string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key(groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.BalanceCacheLookups.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.BalanceCacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to read balance cache: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.BalanceCacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to decode cached balances: %w", err)
	}
	metrics.BalanceCacheLookups.WithLabelValues("hit").Inc()
	return true, nil
}

// Set stores view for groupID.
func (c *BalanceCache) Set(ctx context.Context, groupID string, view any) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode balances: %w", err)
	}
	if err := c.client.Set(ctx, key(groupID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write balance cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached view for groupID.
func (c *BalanceCache) Invalidate(ctx context.Context, groupID string) error {
	if err := c.client.Del(ctx, key(groupID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate balance cache: %w", err)
	}
	return nil
}
