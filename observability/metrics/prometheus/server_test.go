package prometheus

import (
	"context"
	"net/http/httptest"
	"testing"

	"twirp"
	"twirp/internal/testapi"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/dynamicpb"
)

func newServer(t *testing.T, interceptor twirp.Interceptor) *httptest.Server {
	t.Helper()
	r := twirp.NewRouter(twirp.WithLogger(zap.NewNop()), twirp.WithInterceptors(interceptor))
	require.NoError(t, r.AddMethod(testapi.PingMethod, twirp.NewUnary(testapi.EmptyPingRequest,
		func(_ context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
			return testapi.NewPingResponse(testapi.Name(req)), nil
		})))
	require.NoError(t, r.AddMethod(testapi.BoomMethod, twirp.NewUnary(testapi.EmptyPingRequest,
		func(context.Context, *dynamicpb.Message) (*dynamicpb.Message, error) {
			return nil, twirp.NotFoundError("no hat")
		})))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// values flattens a registry into "<metric>{service,method,code}" -> value.
func values(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	res := make(map[string]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			key := mf.GetName() + "{"
			for _, name := range []string{"service", "method", "code"} {
				if v, ok := labels[name]; ok {
					key += v + ","
				}
			}
			key += "}"
			switch {
			case m.GetCounter() != nil:
				res[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				res[key] = m.GetGauge().GetValue()
			case m.GetSummary() != nil:
				res[key] = float64(m.GetSummary().GetSampleCount())
			case m.GetHistogram() != nil:
				res[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return res
}

func TestServerInterceptorBuilder(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := &ServerInterceptorBuilder{Namespace: "twirp", Subsystem: "test", Name: "api", Help: "test api", Registerer: reg}
	interceptor, err := b.Build()
	require.NoError(t, err)
	srv := newServer(t, interceptor)

	c, err := twirp.NewClient(srv.URL, twirp.ClientWithHTTPClient(srv.Client()))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Call(context.Background(), testapi.PingMethod, testapi.NewPingRequest("a"), testapi.EmptyPingResponse()))
	}
	err = c.Call(context.Background(), testapi.BoomMethod, testapi.NewPingRequest("a"), testapi.EmptyPingResponse())
	assert.Equal(t, twirp.NotFound, twirp.CodeOf(err))

	got := values(t, reg)
	assert.Equal(t, float64(3), got["twirp_test_api_response{test.TestAPI,Ping,ok,}"])
	assert.Equal(t, float64(1), got["twirp_test_api_response{test.TestAPI,Boom,not_found,}"])
	assert.Equal(t, float64(1), got["twirp_test_api_error_cnt{test.TestAPI,Boom,not_found,}"])
	assert.Equal(t, float64(0), got["twirp_test_api_active_req_cnt{test.TestAPI,Ping,}"])
	_, ok := got["twirp_test_api_error_cnt{test.TestAPI,Ping,ok,}"]
	assert.False(t, ok)

	// a second builder with the same names cannot register
	_, err = b.Build()
	assert.Error(t, err)
}

func TestClientInterceptorBuilder(t *testing.T) {
	reg := prometheus.NewRegistry()
	interceptor, err := (&ClientInterceptorBuilder{Namespace: "twirp", Name: "api", Help: "calls", Registerer: reg}).Build()
	require.NoError(t, err)

	srvReg := prometheus.NewRegistry()
	serverInterceptor, err := (&ServerInterceptorBuilder{Name: "api", Registerer: srvReg}).Build()
	require.NoError(t, err)
	srv := newServer(t, serverInterceptor)

	c, err := twirp.NewClient(srv.URL, twirp.ClientWithHTTPClient(srv.Client()), twirp.ClientWithInterceptors(interceptor))
	require.NoError(t, err)
	require.NoError(t, c.Call(context.Background(), testapi.PingMethod, testapi.NewPingRequest("a"), testapi.EmptyPingResponse()))
	require.Error(t, c.Call(context.Background(), testapi.BoomMethod, testapi.NewPingRequest("a"), testapi.EmptyPingResponse()))

	gone, err := twirp.NewClient("http://127.0.0.1:1", twirp.ClientWithInterceptors(interceptor))
	require.NoError(t, err)
	require.Error(t, gone.Call(context.Background(), testapi.PingMethod, testapi.NewPingRequest("a"), testapi.EmptyPingResponse()))

	got := values(t, reg)
	assert.Equal(t, float64(1), got["twirp_api_call_ms{test.TestAPI,Ping,ok,}"])
	assert.Equal(t, float64(1), got["twirp_api_call_ms{test.TestAPI,Boom,not_found,}"])
	assert.Equal(t, float64(1), got["twirp_api_call_ms{test.TestAPI,Ping,transport,}"])
}
