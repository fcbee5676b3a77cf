package ratelimit

import (
	"context"
	"time"

	"twirp"

	"golang.org/x/time/rate"
)

var _ Limiter = (*TokenBucketLimiter)(nil)

// TokenBucketLimiter refills one token every interval and holds at most burst.
// A call that finds the bucket empty is rejected at once.
type TokenBucketLimiter struct {
	limiter  *rate.Limiter
	onReject RejectStrategy
}

func NewTokenBucketLimiter(burst int, interval time.Duration) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter:  rate.NewLimiter(rate.Every(interval), burst),
		onReject: DefaultRejection,
	}
}

func (l *TokenBucketLimiter) OnReject(onReject RejectStrategy) *TokenBucketLimiter {
	l.onReject = onReject
	return l
}

func (l *TokenBucketLimiter) LimitUnary() twirp.Interceptor {
	return func(next twirp.Handler) twirp.Handler {
		return twirp.HandlerFunc(func(ctx context.Context, inv *twirp.Invocation) ([]byte, error) {
			if !l.limiter.Allow() {
				return l.onReject(ctx, inv, next)
			}
			return next.Invoke(ctx, inv)
		})
	}
}
