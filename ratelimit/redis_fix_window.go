package ratelimit

import (
	"context"
	_ "embed"
	"time"

	"twirp"

	"github.com/go-redis/redis/v9"
)

//go:embed lua/fix_window.lua
var luaFixWindow string

var _ Limiter = (*RedisFixWindowLimiter)(nil)

type RedisFixWindowLimiter struct {
	key      string
	maxRate  int
	interval time.Duration
	onReject RejectStrategy
	client   redis.Cmdable
}

func NewRedisFixWindowLimiter(client redis.Cmdable, key string, maxRate int, interval time.Duration) *RedisFixWindowLimiter {
	return &RedisFixWindowLimiter{
		client:   client,
		key:      key,
		maxRate:  maxRate,
		interval: interval,
		onReject: DefaultRejection,
	}
}

func (l *RedisFixWindowLimiter) OnReject(onReject RejectStrategy) *RedisFixWindowLimiter {
	l.onReject = onReject
	return l
}

func (l *RedisFixWindowLimiter) LimitUnary() twirp.Interceptor {
	return redisInterceptor(l.limit, &l.onReject)
}

func (l *RedisFixWindowLimiter) limit(ctx context.Context) (bool, error) {
	return l.client.Eval(ctx, luaFixWindow, []string{l.key}, l.interval.Milliseconds(), l.maxRate).Bool()
}
