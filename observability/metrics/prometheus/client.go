package prometheus

import (
	"context"
	"time"

	"twirp"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/proto"
)

// ClientInterceptorBuilder records call latency by outcome. Transport failures
// are reported with code "transport".
type ClientInterceptorBuilder struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	Registerer prometheus.Registerer
}

func (b *ClientInterceptorBuilder) Build() (twirp.ClientInterceptor, error) {
	histogramVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   b.Namespace,
		Subsystem:   b.Subsystem,
		Name:        b.Name + "_call_ms",
		Help:        b.Help,
		ConstLabels: map[string]string{"kind": "client"},
		Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"service", "method", "code"})
	reg := b.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(histogramVec); err != nil {
		return nil, err
	}
	return func(next twirp.ClientInvoker) twirp.ClientInvoker {
		return func(ctx context.Context, method string, req, resp proto.Message) error {
			startTime := time.Now()
			err := next(ctx, method, req, resp)
			code := "ok"
			switch {
			case twirp.IsClientError(err):
				code = "transport"
			case err != nil:
				code = string(twirp.CodeOf(err))
			}
			s, m := splitMethodName(method)
			histogramVec.WithLabelValues(s, m, code).Observe(float64(time.Since(startTime).Milliseconds()))
			return err
		}
	}, nil
}
