package opentelemetry

import (
	"context"
	"net/http"

	"twirp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"
)

type ClientInterceptorBuilder struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func NewClientInterceptorBuilder(tracer trace.Tracer, propagator propagation.TextMapPropagator) *ClientInterceptorBuilder {
	return &ClientInterceptorBuilder{tracer: tracer, propagator: propagator}
}

func (b *ClientInterceptorBuilder) Build() twirp.ClientInterceptor {
	tracer := b.tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	propagator := b.propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	return func(next twirp.ClientInvoker) twirp.ClientInvoker {
		return func(ctx context.Context, method string, req, resp proto.Message) (err error) {
			svc, name, _ := twirp.SplitMethod(method)
			ctx, span := tracer.Start(ctx, method,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(rpcSystem, rpcService.String(svc), rpcMethod.String(name)))
			defer func() {
				switch {
				case twirp.IsClientError(err):
					span.SetStatus(codes.Error, "transport failed")
					span.RecordError(err)
				case err != nil:
					span.SetAttributes(twirpCode.String(string(twirp.CodeOf(err))))
					span.SetStatus(codes.Error, "client failed")
					span.RecordError(err)
				default:
					span.SetStatus(codes.Ok, "OK")
				}
				span.End()
			}()
			return next(inject(ctx, propagator), method, req, resp)
		}
	}
}

// inject puts the span context into the headers sent with the call, on top of
// any headers the caller already attached.
func inject(ctx context.Context, propagator propagation.TextMapPropagator) context.Context {
	h, ok := twirp.HTTPRequestHeaders(ctx)
	if !ok {
		h = http.Header{}
	}
	h = h.Clone()
	propagator.Inject(ctx, propagation.HeaderCarrier(h))
	return twirp.WithHTTPRequestHeaders(ctx, h)
}
