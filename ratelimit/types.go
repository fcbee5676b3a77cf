package ratelimit

import (
	"context"

	"twirp"
)

// Limiter guards the methods of a Router. LimitUnary is registered with
// twirp.WithInterceptors.
type Limiter interface {
	LimitUnary() twirp.Interceptor
}

// RejectStrategy decides what a limited call gets instead of next.
type RejectStrategy func(ctx context.Context, inv *twirp.Invocation, next twirp.Handler) ([]byte, error)

// DefaultRejection fails the call with resource_exhausted, HTTP 429.
var DefaultRejection RejectStrategy = func(ctx context.Context, inv *twirp.Invocation, next twirp.Handler) ([]byte, error) {
	return nil, twirp.Errorf(twirp.ResourceExhausted, "rate limited %s", inv.Method).
		WithMeta("retryable", "true")
}

// MarkLimitedRejection lets the call through with Limited(ctx) reporting true,
// so the handler can take a cheaper path.
var MarkLimitedRejection RejectStrategy = func(ctx context.Context, inv *twirp.Invocation, next twirp.Handler) ([]byte, error) {
	return next.Invoke(context.WithValue(ctx, limitedKey{}, true), inv)
}

type limitedKey struct{}

// Limited reports whether a limiter marked the call being served.
func Limited(ctx context.Context) bool {
	limited, _ := ctx.Value(limitedKey{}).(bool)
	return limited
}
