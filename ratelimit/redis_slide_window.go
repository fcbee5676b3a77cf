package ratelimit

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"

	"twirp"

	"github.com/go-redis/redis/v9"
)

//go:embed lua/slide_window.lua
var luaSlideWindow string

var _ Limiter = (*RedisSlideWindowLimiter)(nil)

// RedisSlideWindowLimiter shares one sliding window across every process
// using the same key. The key decides the scope: a method, a service or an
// application name.
type RedisSlideWindowLimiter struct {
	key string
	// calls allowed in the window
	maxRate int
	// window size, milliseconds
	interval int64
	onReject RejectStrategy
	client   redis.Cmdable

	// instance and seq make every window member unique, across calls in the
	// same millisecond and across processes sharing the key
	instance string
	seq      atomic.Uint64
	now      func() time.Time
}

func NewRedisSlideWindowLimiter(client redis.Cmdable, key string, maxRate int, interval time.Duration) *RedisSlideWindowLimiter {
	return &RedisSlideWindowLimiter{
		client:   client,
		key:      key,
		maxRate:  maxRate,
		interval: interval.Milliseconds(),
		onReject: DefaultRejection,
		instance: newInstanceID(),
		now:      time.Now,
	}
}

func newInstanceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}

func (l *RedisSlideWindowLimiter) OnReject(onReject RejectStrategy) *RedisSlideWindowLimiter {
	l.onReject = onReject
	return l
}

func (l *RedisSlideWindowLimiter) LimitUnary() twirp.Interceptor {
	return redisInterceptor(l.limit, &l.onReject)
}

func (l *RedisSlideWindowLimiter) limit(ctx context.Context) (bool, error) {
	now := l.now()
	return l.client.Eval(ctx, luaSlideWindow, []string{l.key},
		l.maxRate, l.interval, now.UnixMilli(), l.member(now)).Bool()
}

func (l *RedisSlideWindowLimiter) member(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 10) + "-" + l.instance + "-" +
		strconv.FormatUint(l.seq.Add(1), 10)
}

// redisInterceptor fails the call when redis cannot decide, rather than
// letting it through unguarded.
func redisInterceptor(limit func(ctx context.Context) (bool, error), onReject *RejectStrategy) twirp.Interceptor {
	return func(next twirp.Handler) twirp.Handler {
		return twirp.HandlerFunc(func(ctx context.Context, inv *twirp.Invocation) ([]byte, error) {
			limited, err := limit(ctx)
			if err != nil {
				return nil, twirp.Errorf(twirp.Unavailable, "rate limiter unavailable: %v", err)
			}
			if limited {
				return (*onReject)(ctx, inv, next)
			}
			return next.Invoke(ctx, inv)
		})
	}
}
