package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"twirp"
)

var _ Limiter = (*FixWindowLimiter)(nil)

type FixWindowLimiter struct {
	// window size in nanoseconds
	interval int64
	// at most maxRate calls per window
	maxRate  int64
	cnt      int64
	onReject RejectStrategy
	// start of the current window, unix nanoseconds
	latestWindowStartTimestamp int64
}

// NewFixWindowLimiter allows maxRate calls in every window of interval.
func NewFixWindowLimiter(interval time.Duration, maxRate int64) *FixWindowLimiter {
	return &FixWindowLimiter{
		interval: interval.Nanoseconds(),
		maxRate:  maxRate,
		onReject: DefaultRejection,
	}
}

func (l *FixWindowLimiter) OnReject(onReject RejectStrategy) *FixWindowLimiter {
	l.onReject = onReject
	return l
}

func (l *FixWindowLimiter) LimitUnary() twirp.Interceptor {
	return func(next twirp.Handler) twirp.Handler {
		return twirp.HandlerFunc(func(ctx context.Context, inv *twirp.Invocation) ([]byte, error) {
			current := time.Now().UnixNano()
			windowStart := atomic.LoadInt64(&l.latestWindowStartTimestamp)
			if windowStart+l.interval < current {
				// a failed CAS means another goroutine already opened the new window
				if atomic.CompareAndSwapInt64(&l.latestWindowStartTimestamp, windowStart, current) {
					atomic.StoreInt64(&l.cnt, 0)
				}
			}
			if cnt := atomic.AddInt64(&l.cnt, 1); cnt > l.maxRate {
				return l.onReject(ctx, inv, next)
			}
			return next.Invoke(ctx, inv)
		})
	}
}
