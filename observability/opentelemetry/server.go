package opentelemetry

import (
	"context"
	"fmt"
	"net/http"

	"twirp"
	"twirp/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "twirp/observability/opentelemetry"

var (
	rpcSystem  = attribute.Key("rpc.system").String("twirp")
	rpcService = attribute.Key("rpc.service")
	rpcMethod  = attribute.Key("rpc.method")
	twirpCode  = attribute.Key("rpc.twirp.error_code")
)

type ServerInterceptorBuilder struct {
	port       int
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewServerInterceptorBuilder -> nil tracer and propagator fall back to the otel globals
func NewServerInterceptorBuilder(port int, tracer trace.Tracer, propagator propagation.TextMapPropagator) *ServerInterceptorBuilder {
	return &ServerInterceptorBuilder{port: port, tracer: tracer, propagator: propagator}
}

func (b *ServerInterceptorBuilder) Build() twirp.Interceptor {
	tracer := b.tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	propagator := b.propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	address := observability.GetOutboundIP()
	if b.port != 0 {
		address = fmt.Sprintf("%s:%d", address, b.port)
	}
	return func(next twirp.Handler) twirp.Handler {
		return twirp.HandlerFunc(func(ctx context.Context, inv *twirp.Invocation) (resp []byte, err error) {
			ctx = extract(ctx, propagator)
			svc, method, _ := twirp.SplitMethod(inv.Method)
			ctx, span := tracer.Start(ctx, inv.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					rpcSystem,
					rpcService.String(svc),
					rpcMethod.String(method),
					attribute.String("address", address),
				))
			defer func() {
				if err != nil {
					span.SetAttributes(twirpCode.String(string(twirp.CodeOf(err))))
					span.SetStatus(codes.Error, "server failed")
					span.RecordError(err)
				}
				span.End()
			}()
			return next.Invoke(ctx, inv)
		})
	}
}

func extract(ctx context.Context, propagator propagation.TextMapPropagator) context.Context {
	h, ok := twirp.HTTPRequestHeader(ctx)
	if !ok {
		h = http.Header{}
	}
	return propagator.Extract(ctx, propagation.HeaderCarrier(h))
}
