// Package cache keeps short-lived progress snapshots in Redis so polling
// clients do not hit Postgres on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "prospect-import:progress:"

// ProgressCache is best effort: a Redis failure falls back to the loader.
// Snapshots only ever lag the database, since every job transition
// invalidates its key and entries expire after ttl.
type ProgressCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

func NewProgressCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ProgressCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "progress-cache")),
	}
}

func (c *ProgressCache) GetOrLoad(ctx context.Context, fileID int64, load func(ctx context.Context) (app.ProgressSnapshot, error)) (app.ProgressSnapshot, error) {
	key := buildKey(fileID)
	if snapshot, ok := c.get(ctx, key); ok {
		return snapshot, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		if snapshot, ok := c.get(ctx, key); ok {
			return snapshot, nil
		}
		snapshot, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, snapshot)
		return snapshot, nil
	})
	if err != nil {
		return app.ProgressSnapshot{}, err
	}
	return val.(app.ProgressSnapshot), nil
}

func (c *ProgressCache) Invalidate(ctx context.Context, fileID int64) {
	key := buildKey(fileID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *ProgressCache) get(ctx context.Context, key string) (app.ProgressSnapshot, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return app.ProgressSnapshot{}, false
	}

	var snapshot app.ProgressSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		c.logger.Warn("cache unmarshal failed", zap.String("key", key), zap.Error(err))
		return app.ProgressSnapshot{}, false
	}
	return snapshot, true
}

func (c *ProgressCache) set(ctx context.Context, key string, snapshot app.ProgressSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func buildKey(fileID int64) string {
	return keyPrefix + strconv.FormatInt(fileID, 10)
}

// NewRedisClient opens a client and checks connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
