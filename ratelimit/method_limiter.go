package ratelimit

import (
	"context"

	"twirp"
)

// MethodLimiter applies Limiter to FullMethod only, e.g. "test.TestAPI/Ping".
type MethodLimiter struct {
	Limiter
	FullMethod string
}

func NewMethodLimiter(fullMethod string, limiter Limiter) *MethodLimiter {
	return &MethodLimiter{
		Limiter:    limiter,
		FullMethod: fullMethod,
	}
}

func (m *MethodLimiter) LimitUnary() twirp.Interceptor {
	interceptor := m.Limiter.LimitUnary()
	return func(next twirp.Handler) twirp.Handler {
		limited := interceptor(next)
		return twirp.HandlerFunc(func(ctx context.Context, inv *twirp.Invocation) ([]byte, error) {
			if inv.Method == m.FullMethod {
				return limited.Invoke(ctx, inv)
			}
			return next.Invoke(ctx, inv)
		})
	}
}
