package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"twirp"
)

var _ Limiter = (*SlideWindowLimiter)(nil)

// SlideWindowLimiter allows maxRate calls in any interval ending now. It keeps
// the timestamp of every admitted call inside the window.
type SlideWindowLimiter struct {
	maxRate  int
	queue    *list.List
	mutex    sync.Mutex
	interval time.Duration
	onReject RejectStrategy
}

func NewSlideWindowLimiter(maxRate int, interval time.Duration) *SlideWindowLimiter {
	return &SlideWindowLimiter{
		maxRate:  maxRate,
		interval: interval,
		queue:    list.New(),
		onReject: DefaultRejection,
	}
}

func (l *SlideWindowLimiter) OnReject(onReject RejectStrategy) *SlideWindowLimiter {
	l.onReject = onReject
	return l
}

func (l *SlideWindowLimiter) LimitUnary() twirp.Interceptor {
	return func(next twirp.Handler) twirp.Handler {
		return twirp.HandlerFunc(func(ctx context.Context, inv *twirp.Invocation) ([]byte, error) {
			if !l.admit(time.Now()) {
				return l.onReject(ctx, inv, next)
			}
			return next.Invoke(ctx, inv)
		})
	}
}

func (l *SlideWindowLimiter) admit(current time.Time) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.queue.Len() < l.maxRate {
		l.queue.PushBack(current)
		return true
	}
	// slow path: drop timestamps that slid out of the window
	windowStartTime := current.Add(-l.interval)
	reqTime := l.queue.Front()
	for reqTime != nil && !reqTime.Value.(time.Time).After(windowStartTime) {
		l.queue.Remove(reqTime)
		reqTime = l.queue.Front()
	}
	if l.queue.Len() >= l.maxRate {
		return false
	}
	l.queue.PushBack(current)
	return true
}
