package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightstat/config"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts requests per key in fixed windows.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(cfg config.RedisConfig) *RedisLimiter {
	return &RedisLimiter{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		prefix: "ratelimit",
	}
}

// Allow increments the counter of key for the current window and reports
// whether it is still within limit. The counter expires with its window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := windowKey(l.prefix, key, window, time.Now())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}

	return incr.Val() <= int64(limit), nil
}

func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

func windowKey(prefix, key string, window time.Duration, now time.Time) string {
	if window < time.Second {
		window = time.Minute
	}
	return fmt.Sprintf("%s:%s:%d", prefix, key, now.Unix()/int64(window/time.Second))
}
