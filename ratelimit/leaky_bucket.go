package ratelimit

import (
	"context"
	"errors"
	"time"

	"twirp"
)

var _ Limiter = (*LeakyBucketLimiter)(nil)

var errLimiterClosed = errors.New("ratelimit: limiter is closed")

// LeakyBucketLimiter lets one call through per tick. Calls wait for their
// tick until the request context ends.
type LeakyBucketLimiter struct {
	close    chan struct{}
	producer *time.Ticker
}

func NewLeakyBucketLimiter(interval time.Duration) *LeakyBucketLimiter {
	return &LeakyBucketLimiter{
		close:    make(chan struct{}),
		producer: time.NewTicker(interval),
	}
}

func (l *LeakyBucketLimiter) LimitUnary() twirp.Interceptor {
	return func(next twirp.Handler) twirp.Handler {
		return twirp.HandlerFunc(func(ctx context.Context, inv *twirp.Invocation) ([]byte, error) {
			select {
			case <-l.close:
				return nil, twirp.UnavailableError(errLimiterClosed.Error())
			default:
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-l.close:
				// a closed limiter means the service is shutting down
				return nil, twirp.UnavailableError(errLimiterClosed.Error())
			case <-l.producer.C:
				return next.Invoke(ctx, inv)
			}
		})
	}
}

// Close stops the limiter. It must be called once.
func (l *LeakyBucketLimiter) Close() error {
	close(l.close)
	l.producer.Stop()
	return nil
}
