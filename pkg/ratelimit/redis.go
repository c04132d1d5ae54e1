package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter Redis-based rate limiter (fixed window)
type RedisLimiter struct {
	client *redis.Client
	config *Config
	script *redis.Script
}

// NewRedisLimiter создаёт Redis rate limiter
func NewRedisLimiter(cfg *Config) (*RedisLimiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	// Lua скрипт: атомарный инкремент счётчика окна с TTL
	script := redis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window_sec = tonumber(ARGV[2])
		local count = tonumber(ARGV[3])

		local current = tonumber(redis.call('GET', key) or '0')
		if current + count > limit then
			return 0
		end

		current = redis.call('INCRBY', key, count)
		if current == count then
			redis.call('EXPIRE', key, window_sec)
		end
		return 1
	`)

	return &RedisLimiter{
		client: client,
		config: cfg,
		script: script,
	}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *RedisLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)
	windowSec := int64(l.config.Window.Seconds())
	if windowSec < 1 {
		windowSec = 1
	}

	allowed, err := l.script.Run(ctx, l.client, []string{redisKey},
		l.config.Requests, windowSec, n).Int64()
	if err != nil {
		return false, fmt.Errorf("redis script error: %w", err)
	}

	return allowed == 1, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("ratelimit:%s", key)
	return l.client.Del(ctx, redisKey).Err()
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
