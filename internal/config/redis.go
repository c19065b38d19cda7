package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// IsRedisURL reports whether RedisURL is a full URL (Upstash style) rather than host:port.
func (c *Config) IsRedisURL() bool {
	return strings.HasPrefix(c.RedisURL, "redis://") || strings.HasPrefix(c.RedisURL, "rediss://")
}

// NewRedisClient builds the broker client without checking connectivity.
// Use WaitForRedis to block until the broker answers.
func NewRedisClient(cfg *Config) (*redis.Client, error) {
	if cfg.IsRedisURL() {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %v", err)
		}
		return redis.NewClient(opt), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), nil
}

// WaitForRedis pings the broker until it answers, sleeping interval between
// attempts. It only gives up when ctx is cancelled.
func WaitForRedis(ctx context.Context, rdb *redis.Client, interval time.Duration, onRetry func(attempt int, err error)) error {
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return nil
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up connecting to Redis after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(interval):
		}
	}
}
