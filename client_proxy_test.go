package twirp

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"twirp/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type echoServiceClient struct {
	Echo    func(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Shout   func(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) `twirp:"Upper"`
	Counter int
}

func (*echoServiceClient) ServiceName() string {
	return "example.echo.Echo"
}

type badServiceClient struct {
	Echo func(req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

func (*badServiceClient) ServiceName() string {
	return "example.echo.Echo"
}

type valueService struct{}

func (valueService) ServiceName() string {
	return "example.echo.Echo"
}

type mockCaller struct {
	method string
	req    proto.Message
	resp   *wrapperspb.StringValue
	err    error
}

func (m *mockCaller) Call(ctx context.Context, method string, req, resp proto.Message) error {
	m.method, m.req = method, req
	if m.err != nil {
		return m.err
	}
	proto.Merge(resp, m.resp)
	return nil
}

func TestInitClientProxy(t *testing.T) {
	testCases := []struct {
		name       string
		caller     *mockCaller
		call       func(s *echoServiceClient) (*wrapperspb.StringValue, error)
		wantMethod string
		wantResp   string
		wantErr    error
	}{
		{
			name:   "field name",
			caller: &mockCaller{resp: wrapperspb.String("hello")},
			call: func(s *echoServiceClient) (*wrapperspb.StringValue, error) {
				return s.Echo(context.Background(), wrapperspb.String("hello"))
			},
			wantMethod: "example.echo.Echo/Echo",
			wantResp:   "hello",
		},
		{
			name:   "tag name",
			caller: &mockCaller{resp: wrapperspb.String("HELLO")},
			call: func(s *echoServiceClient) (*wrapperspb.StringValue, error) {
				return s.Shout(context.Background(), wrapperspb.String("hello"))
			},
			wantMethod: "example.echo.Echo/Upper",
			wantResp:   "HELLO",
		},
		{
			name:   "caller error",
			caller: &mockCaller{err: NotFoundError("no echo")},
			call: func(s *echoServiceClient) (*wrapperspb.StringValue, error) {
				return s.Echo(context.Background(), wrapperspb.String("hello"))
			},
			wantMethod: "example.echo.Echo/Echo",
			wantErr:    NotFoundError("no echo"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := &echoServiceClient{}
			require.NoError(t, InitClientProxy(tc.caller, s))
			resp, err := tc.call(s)
			assert.Equal(t, tc.wantMethod, tc.caller.method)
			assert.Equal(t, tc.wantErr, err)
			if err != nil {
				assert.Nil(t, resp)
				return
			}
			assert.Equal(t, tc.wantResp, resp.GetValue())
		})
	}
}

func TestInitClientProxy_Invalid(t *testing.T) {
	assert.Equal(t, errs.ErrServiceType, InitClientProxy(&mockCaller{}, valueService{}))
	assert.Equal(t, errs.ErrServiceType, InitClientProxy(&mockCaller{}, (*echoServiceClient)(nil)))
	assert.Equal(t, errs.StubField("Echo"), InitClientProxy(&mockCaller{}, &badServiceClient{}))
}

func TestInitClientProxy_Router(t *testing.T) {
	r := NewRouter(WithLogger(zap.NewNop()))
	newString := func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }
	require.NoError(t, r.AddMethod("example.echo.Echo/Echo", NewUnary(newString,
		func(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
			return req, nil
		})))
	require.NoError(t, r.AddMethod("example.echo.Echo/Upper", NewUnary(newString,
		func(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
			if req.GetValue() == "" {
				return nil, InvalidArgumentError("value is required").WithMeta("argument", "value")
			}
			return wrapperspb.String(strings.ToUpper(req.GetValue())), nil
		})))
	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, ct := range []ContentType{Structured, Binary} {
		t.Run(ct.String(), func(t *testing.T) {
			c, err := NewClient(srv.URL, ClientWithHTTPClient(srv.Client()), ClientWithContentType(ct))
			require.NoError(t, err)
			s := &echoServiceClient{}
			require.NoError(t, InitClientProxy(c, s))

			resp, err := s.Shout(context.Background(), wrapperspb.String("hello"))
			require.NoError(t, err)
			assert.Equal(t, "HELLO", resp.GetValue())

			_, err = s.Shout(context.Background(), wrapperspb.String(""))
			var te *Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, InvalidArgument, te.Code)
			assert.Equal(t, "value", te.MetaValue("argument"))
		})
	}
}
