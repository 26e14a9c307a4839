// Package ratelimit counts failed OTP attempts per email in Redis.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter tracks failures for a key within a window.
type Limiter interface {
	// Blocked reports whether key has used up its failure budget.
	Blocked(ctx context.Context, key string) (bool, error)
	// Fail records one failure for key.
	Fail(ctx context.Context, key string) error
	// Reset forgets all failures for key.
	Reset(ctx context.Context, key string) error
}

type redisLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisLimiter counts failures in Redis. Redis errors are logged and treated as
// "not blocked" so an unavailable cache never locks users out of verification.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration, logger *zap.Logger) Limiter {
	if client == nil || max <= 0 {
		return Noop{}
	}
	return &redisLimiter{
		client: client,
		max:    int64(max),
		window: window,
		prefix: "otp:fail:",
		logger: logger,
	}
}

func (l *redisLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Get(ctx, l.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		l.logger.Warn("attempt limiter unavailable", zap.Error(err))
		return false, nil
	}
	return n >= l.max, nil
}

func (l *redisLimiter) Fail(ctx context.Context, key string) error {
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, l.prefix+key)
	pipe.Expire(ctx, l.prefix+key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("attempt limiter unavailable", zap.Error(err))
	}
	return nil
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		l.logger.Warn("attempt limiter unavailable", zap.Error(err))
	}
	return nil
}

// Noop never blocks.
type Noop struct{}

func (Noop) Blocked(context.Context, string) (bool, error) { return false, nil }
func (Noop) Fail(context.Context, string) error            { return nil }
func (Noop) Reset(context.Context, string) error           { return nil }
