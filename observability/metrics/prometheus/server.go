package prometheus

import (
	"context"
	"time"

	"twirp"
	"twirp/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerInterceptorBuilder records latency, failures and in-flight requests of
// every method a Router serves.
type ServerInterceptorBuilder struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string

	// Port is added to the address const label, for deployments running one
	// process per host port.
	Port string

	// Registerer defaults to prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

func (b *ServerInterceptorBuilder) Build() (twirp.Interceptor, error) {
	constLabels := map[string]string{
		"address": observability.Address(b.Port),
		"kind":    "server",
	}
	summaryVec := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:   b.Namespace,
		Subsystem:   b.Subsystem,
		Help:        b.Help,
		Name:        b.Name + "_response",
		ConstLabels: constLabels,
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.9:   0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{"service", "method", "code"})

	errCntVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   b.Namespace,
		Subsystem:   b.Subsystem,
		Name:        b.Name + "_error_cnt",
		Help:        b.Help,
		ConstLabels: constLabels,
	}, []string{"service", "method", "code"})

	reqCntVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   b.Namespace,
		Subsystem:   b.Subsystem,
		Name:        b.Name + "_active_req_cnt",
		Help:        b.Help,
		ConstLabels: constLabels,
	}, []string{"service", "method"})

	reg := b.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{summaryVec, errCntVec, reqCntVec} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return func(next twirp.Handler) twirp.Handler {
		return twirp.HandlerFunc(func(ctx context.Context, inv *twirp.Invocation) (resp []byte, err error) {
			s, m := splitMethodName(inv.Method)
			reqCnt := reqCntVec.WithLabelValues(s, m)
			reqCnt.Inc()
			startTime := time.Now()
			defer func() {
				reqCnt.Dec()
				code := "ok"
				if err != nil {
					code = string(twirp.CodeOf(err))
					errCntVec.WithLabelValues(s, m, code).Inc()
				}
				summaryVec.WithLabelValues(s, m, code).
					Observe(float64(time.Since(startTime).Milliseconds()))
			}()
			return next.Invoke(ctx, inv)
		})
	}, nil
}

// splitMethodName turns "test.TestAPI/Ping" into "test.TestAPI" and "Ping".
func splitMethodName(fullMethodName string) (string, string) {
	if s, m, ok := twirp.SplitMethod(fullMethodName); ok {
		return s, m
	}
	return "unknown", "unknown"
}
