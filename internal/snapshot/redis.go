package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "balance-snapshot"

// RedisCache stores snapshots as JSON envelopes in Redis. Retention is much
// longer than the freshness window so last-known values survive adapter
// outages and process restarts.
type RedisCache struct {
	redis     redis.Cmdable
	retention time.Duration
}

func NewRedisCache(client redis.Cmdable, retention time.Duration) *RedisCache {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisCache{redis: client, retention: retention}
}

func (c *RedisCache) Get(ctx context.Context, walletID uuid.UUID) (*models.BalanceSnapshot, error) {
	val, err := c.redis.Get(ctx, redisKey(walletID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis snapshot lookup: %w", err)
	}

	var snap models.BalanceSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &snap, nil
}

func (c *RedisCache) Put(ctx context.Context, snap models.BalanceSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, redisKey(snap.WalletID), payload, c.retention).Err(); err != nil {
		return fmt.Errorf("redis snapshot set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	if err := c.redis.Del(ctx, redisKey(walletID)).Err(); err != nil {
		return fmt.Errorf("redis snapshot invalidate: %w", err)
	}
	return nil
}

func redisKey(walletID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, walletID)
}
