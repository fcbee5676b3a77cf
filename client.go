package twirp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"twirp/internal/errs"
	"twirp/rpc/compress"

	"github.com/gotomicro/ekit/bean/option"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
	"google.golang.org/protobuf/proto"
)

const defaultTimeout = 30 * time.Second

//go:generate mockgen -source=client.go -destination=internal/mocks/http_client.go -package=mocks HTTPClient

// HTTPClient is the part of *http.Client the Client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientInvoker performs one call.
type ClientInvoker func(ctx context.Context, method string, req, resp proto.Message) error

// ClientInterceptor wraps every call made by a Client.
type ClientInterceptor func(next ClientInvoker) ClientInvoker

// ClientError means the call never produced an HTTP response: connection,
// DNS, TLS or timeout failures. It is never an *Error, so callers can retry it
// separately from errors the server declared.
type ClientError struct {
	Method string
	URL    string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("twirp: call %s (%s) failed: %v", e.Method, e.URL, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time.
func (e *ClientError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// Client calls methods of one service root. Its configuration is fixed at
// construction; use Clone to derive a client with different settings.
type Client struct {
	baseURL      string
	httpClient   HTTPClient
	timeout      time.Duration
	header       http.Header
	contentType  ContentType
	codec        *Codec
	compressor   compress.Compressor
	interceptors []ClientInterceptor
	logger       *zap.Logger

	invoker ClientInvoker
}

// NewClient -> create a Client for baseURL, which must already contain the
// mount prefix, e.g. "http://localhost:3000/twirp".
func NewClient(baseURL string, opts ...option.Option[Client]) (*Client, error) {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		timeout:     defaultTimeout,
		header:      make(http.Header),
		contentType: Structured,
		codec:       NewCodec(),
		logger:      zap.L(),
	}
	return c.build(opts...)
}

func (c *Client) build(opts ...option.Option[Client]) (*Client, error) {
	for _, opt := range opts {
		opt(c)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errs.ErrInvalidBaseURL
	}
	c.baseURL = strings.TrimSuffix(c.baseURL, "/")
	for k, vs := range c.header {
		if !httpguts.ValidHeaderFieldName(k) {
			return nil, errs.InvalidHeader(k)
		}
		for _, v := range vs {
			if !httpguts.ValidHeaderFieldValue(v) {
				return nil, errs.InvalidHeader(k)
			}
		}
	}
	c.invoker = c.do
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		c.invoker = c.interceptors[i](c.invoker)
	}
	return c, nil
}

// Clone -> a new Client with this client's configuration plus opts
func (c *Client) Clone(opts ...option.Option[Client]) (*Client, error) {
	cp := *c
	cp.header = c.header.Clone()
	cp.interceptors = append([]ClientInterceptor(nil), c.interceptors...)
	return cp.build(opts...)
}

func ClientWithHTTPClient(hc HTTPClient) option.Option[Client] {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// ClientWithTimeout -> bound every call; zero leaves only the caller's context
func ClientWithTimeout(timeout time.Duration) option.Option[Client] {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// ClientWithHeader -> send key: value with every call
func ClientWithHeader(key, value string) option.Option[Client] {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// ClientWithContentType -> the encoding used for every call of this client
func ClientWithContentType(ct ContentType) option.Option[Client] {
	return func(c *Client) {
		c.contentType = ct
	}
}

func ClientWithCodec(codec *Codec) option.Option[Client] {
	return func(c *Client) {
		c.codec = codec
	}
}

// ClientWithCompressor -> compress request bodies and accept compressed responses
func ClientWithCompressor(compressor compress.Compressor) option.Option[Client] {
	return func(c *Client) {
		c.compressor = compressor
	}
}

func ClientWithInterceptors(interceptors ...ClientInterceptor) option.Option[Client] {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

func ClientWithLogger(logger *zap.Logger) option.Option[Client] {
	return func(c *Client) {
		c.logger = logger
	}
}

func ClientWithBaseURL(baseURL string) option.Option[Client] {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// MethodURL joins the base URL and the fully-qualified method. No prefix is added.
func (c *Client) MethodURL(method string) string {
	return c.baseURL + "/" + method
}

// Call sends req to method and decodes the success body into resp.
//
// The error is a *ClientError when no HTTP response was received, and an
// *Error for everything else, including undecodable responses. A malformed
// method name is rejected with errs.ErrInvalidMethod before anything is sent.
func (c *Client) Call(ctx context.Context, method string, req, resp proto.Message) error {
	return c.invoker(ctx, method, req, resp)
}

func (c *Client) do(ctx context.Context, method string, req, resp proto.Message) error {
	if err := validateMethod(method); err != nil {
		return err
	}
	body, err := c.codec.Encode(c.contentType, req)
	if err != nil {
		return err
	}
	if c.compressor != nil {
		if body, err = c.compressor.Compress(body); err != nil {
			return Errorf(Internal, "failed to compress request: %v", err)
		}
	}

	target := c.MethodURL(method)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &ClientError{Method: method, URL: target, Err: err}
	}
	c.setHeaders(ctx, httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("twirp: transport failure", zap.String("method", method), zap.Error(err))
		return &ClientError{Method: method, URL: target, Err: err}
	}
	defer closeBody(httpResp.Body)
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &ClientError{Method: method, URL: target, Err: err}
	}
	respBody, err = c.uncompress(httpResp, respBody)
	if err != nil {
		e := Errorf(Internal, "failed to uncompress response: %v", err)
		e.StatusCode = httpResp.StatusCode
		return e
	}

	if httpResp.StatusCode != http.StatusOK {
		return errorFromResponse(httpResp.StatusCode, respBody)
	}
	if got := DetectContentType(httpResp.Header.Get("Content-Type")); got != c.contentType {
		e := Errorf(Internal, "expected %s response, got Content-Type %q",
			c.contentType, httpResp.Header.Get("Content-Type"))
		e.StatusCode = httpResp.StatusCode
		return e
	}
	if err = c.codec.Decode(c.contentType, respBody, resp); err != nil {
		e := Errorf(Internal, "failed to decode response: %v", err)
		e.StatusCode = httpResp.StatusCode
		e.cause = err
		return e
	}
	return nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	for k, vs := range c.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if h, ok := HTTPRequestHeaders(ctx); ok {
		for k, vs := range h {
			req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
		}
	}
	req.Header.Set("Content-Type", c.codec.ContentType(c.contentType))
	req.Header.Set("Accept", c.codec.ContentType(c.contentType))
	if c.compressor != nil {
		req.Header.Set("Content-Encoding", c.compressor.Name())
		req.Header.Set("Accept-Encoding", c.compressor.Name())
	}
}

func (c *Client) uncompress(resp *http.Response, body []byte) ([]byte, error) {
	enc := strings.TrimSpace(resp.Header.Get("Content-Encoding"))
	if enc == "" || enc == "identity" {
		return body, nil
	}
	if c.compressor == nil || c.compressor.Name() != enc {
		return nil, fmt.Errorf("%w %q", errs.ErrUnknownEncoding, enc)
	}
	return c.compressor.Uncompress(body)
}

// errorFromResponse decodes a non-200 body. A body that is not an envelope,
// e.g. from a proxy in between, still becomes an error carrying status and body.
func errorFromResponse(status int, body []byte) *Error {
	e, err := ParseError(body)
	if err != nil {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		e = InternalError(msg).
			WithMeta("http_error_from_intermediary", "true").
			WithMeta("status_code", statusMeta(status))
	}
	e.StatusCode = status
	return e
}

// closeBody drains the body so the connection can be reused.
func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
