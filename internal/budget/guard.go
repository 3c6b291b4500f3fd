// Package budget enforces the per-user daily request quota. Counters live in
// Redis so concurrent turns from the same user race on an atomic INCR rather
// than on process memory.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "aria:usage:"

// Guard tracks per-user daily usage against a fixed limit. Counters reset at
// midnight UTC via key expiry.
type Guard struct {
	rdb      *redis.Client
	maxDaily int64
	logger   *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewGuard connects to Redis and returns a ready Guard.
func NewGuard(redisURL string, maxDaily int64, logger *zap.Logger) (*Guard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Guard{rdb: rdb, maxDaily: maxDaily, logger: logger, now: time.Now}, nil
}

// IncrementAndCheck counts one request for the user and reports whether it is
// within today's limit. The increment is atomic, so concurrent turns cannot
// both slip under the limit on the boundary request.
func (g *Guard) IncrementAndCheck(ctx context.Context, userID string) (bool, error) {
	today := g.now().UTC()
	key := fmt.Sprintf("%s%s:%s", keyPrefix, userID, today.Format("2006-01-02"))

	count, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("increment usage %s: %w", userID, err)
	}
	if count == 1 {
		// First request of the day owns setting the expiry. Stale keys from
		// a crashed expiry write still vanish a day later.
		ttl := time.Until(today.Truncate(24*time.Hour).Add(48 * time.Hour))
		if err := g.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			g.logger.Warn("failed to set usage key expiry", zap.String("key", key), zap.Error(err))
		}
	}

	allowed := count <= g.maxDaily
	if !allowed {
		g.logger.Info("daily quota exceeded",
			zap.String("user", userID), zap.Int64("count", count), zap.Int64("limit", g.maxDaily))
	}
	return allowed, nil
}

// Usage returns the user's request count for today.
func (g *Guard) Usage(ctx context.Context, userID string) (int64, error) {
	key := fmt.Sprintf("%s%s:%s", keyPrefix, userID, g.now().UTC().Format("2006-01-02"))
	count, err := g.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage %s: %w", userID, err)
	}
	return count, nil
}

// Close shuts down the Redis connection.
func (g *Guard) Close() error {
	return g.rdb.Close()
}
