package twirp

import (
	"context"
	"reflect"

	"twirp/internal/errs"

	"google.golang.org/protobuf/proto"
)

// Invocation is one decoded-transport, still-encoded call handed to a Handler.
type Invocation struct {
	// Method is the fully-qualified method, "<package>.<Service>/<Method>"
	Method      string
	ContentType ContentType
	Body        []byte
	Codec       *Codec
}

func (inv *Invocation) codec() *Codec {
	if inv.Codec == nil {
		return defaultCodec
	}
	return inv.Codec
}

var defaultCodec = NewCodec()

// Handler serves one method. It returns either the encoded success body or an
// error; errors that are not *Error are coerced with ToError by the router.
type Handler interface {
	Invoke(ctx context.Context, inv *Invocation) ([]byte, error)
}

type HandlerFunc func(ctx context.Context, inv *Invocation) ([]byte, error)

func (f HandlerFunc) Invoke(ctx context.Context, inv *Invocation) ([]byte, error) {
	return f(ctx, inv)
}

// NewUnary adapts a typed method to a Handler. The request is decoded before fn
// runs, so fn never sees a malformed request, and the response is encoded with
// the request's content type.
func NewUnary[Req, Resp proto.Message](newReq func() Req, fn func(context.Context, Req) (Resp, error)) Handler {
	return HandlerFunc(func(ctx context.Context, inv *Invocation) ([]byte, error) {
		codec := inv.codec()
		req := newReq()
		if err := codec.Decode(inv.ContentType, inv.Body, req); err != nil {
			return nil, err
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		if isNilMessage(resp) {
			return nil, InternalErrorWith(errs.ErrNilResponse)
		}
		return codec.Encode(inv.ContentType, resp)
	})
}

func isNilMessage(m proto.Message) bool {
	if m == nil {
		return true
	}
	val := reflect.ValueOf(m)
	return val.Kind() == reflect.Ptr && val.IsNil()
}

// Interceptor wraps a Handler, e.g. for metrics, tracing or rate limiting.
type Interceptor func(next Handler) Handler

// ChainInterceptors composes interceptors so the first one is outermost:
// ChainInterceptors(A, B)(h) runs A, then B, then h.
func ChainInterceptors(interceptors ...Interceptor) Interceptor {
	return func(next Handler) Handler {
		for i := len(interceptors) - 1; i >= 0; i-- {
			if interceptors[i] != nil {
				next = interceptors[i](next)
			}
		}
		return next
	}
}
