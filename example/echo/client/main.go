package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"twirp"
	"twirp/observability/opentelemetry"
	"twirp/rpc/compress/snappy"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// EchoServiceClient is filled in by twirp.InitClientProxy.
type EchoServiceClient struct {
	Echo  func(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Upper func(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

func (*EchoServiceClient) ServiceName() string {
	return "example.echo.Echo"
}

func main() {
	addr := flag.String("addr", "http://localhost:8081/twirp", "service root")
	msg := flag.String("msg", "hello", "value to send")
	binary := flag.Bool("binary", false, "use protobuf instead of JSON")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	ct := twirp.Structured
	if *binary {
		ct = twirp.Binary
	}
	c, err := twirp.NewClient(*addr,
		twirp.ClientWithLogger(logger),
		twirp.ClientWithContentType(ct),
		twirp.ClientWithCompressor(snappy.Compressor{}),
		twirp.ClientWithTimeout(3*time.Second),
		twirp.ClientWithHeader("X-Client", "echo-example"),
		twirp.ClientWithInterceptors(opentelemetry.NewClientInterceptorBuilder(nil, nil).Build()))
	if err != nil {
		logger.Fatal("new client", zap.Error(err))
	}
	echo := &EchoServiceClient{}
	if err = twirp.InitClientProxy(c, echo); err != nil {
		logger.Fatal("init client", zap.Error(err))
	}

	ctx := twirp.WithHTTPRequestHeaders(context.Background(), http.Header{"X-Request-Id": []string{"example-1"}})
	resp, err := echo.Upper(ctx, wrapperspb.String(*msg))
	switch {
	case twirp.IsClientError(err):
		logger.Fatal("service unreachable", zap.Error(err))
	case err != nil:
		te := twirp.ToError(err)
		logger.Fatal("call failed",
			zap.String("code", string(te.Code)),
			zap.String("msg", te.Msg),
			zap.Any("meta", te.Meta),
			zap.Int("status", te.StatusCode))
	}
	logger.Info("upper", zap.String("value", resp.GetValue()))
}
