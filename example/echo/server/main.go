package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"twirp"
	"twirp/observability/metrics/prometheus"
	"twirp/observability/opentelemetry"
	"twirp/ratelimit"
	"twirp/rpc/compress/gzip"
	"twirp/rpc/compress/snappy"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type EchoService struct{}

func (EchoService) Echo(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return req, nil
}

func (EchoService) Upper(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req.GetValue() == "" {
		return nil, twirp.InvalidArgumentError("value is required").WithMeta("argument", "value")
	}
	if ratelimit.Limited(ctx) {
		return req, nil
	}
	return wrapperspb.String(strings.ToUpper(req.GetValue())), nil
}

func newString() *wrapperspb.StringValue {
	return &wrapperspb.StringValue{}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics, err := (&prometheus.ServerInterceptorBuilder{
		Namespace: "example",
		Subsystem: "echo",
		Name:      "server",
		Help:      "echo service calls",
		Port:      "8081",
	}).Build()
	if err != nil {
		logger.Fatal("register metrics", zap.Error(err))
	}

	svc := EchoService{}
	api := twirp.NewRouter(
		twirp.WithLogger(logger),
		twirp.WithCompressors(gzip.Compressor{}, snappy.Compressor{}),
		twirp.WithMaxRequestBytes(1<<20),
		twirp.WithInterceptors(
			opentelemetry.NewServerInterceptorBuilder(8081, nil, nil).Build(),
			metrics,
			ratelimit.NewMethodLimiter("example.echo.Echo/Upper",
				ratelimit.NewTokenBucketLimiter(100, 10*time.Millisecond).OnReject(ratelimit.MarkLimitedRejection)).LimitUnary(),
			ratelimit.NewSlideWindowLimiter(1000, time.Second).LimitUnary(),
		))
	mustAdd(logger, api, "example.echo.Echo/Echo", twirp.NewUnary(newString, svc.Echo))
	mustAdd(logger, api, "example.echo.Echo/Upper", twirp.NewUnary(newString, svc.Upper))

	root := twirp.NewRouter(twirp.WithLogger(logger))
	if err = root.Nest("/twirp", api); err != nil {
		logger.Fatal("mount api", zap.Error(err))
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", root)

	server := &http.Server{
		Addr:              ":8081",
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("echo service listening", zap.String("addr", server.Addr), zap.Strings("methods", root.Methods()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func mustAdd(logger *zap.Logger, r *twirp.Router, method string, h twirp.Handler) {
	if err := r.AddMethod(method, h); err != nil {
		logger.Fatal("register method", zap.String("method", method), zap.Error(err))
	}
}
