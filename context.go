package twirp

import (
	"context"
	"net/http"
	"strings"
)

type contextKey int

const (
	methodKey contextKey = iota
	requestHeaderKey
	outgoingHeaderKey
	contentTypeKey
)

func withMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodKey, method)
}

// MethodName -> the fully-qualified method being served, e.g. "test.TestAPI/Ping"
func MethodName(ctx context.Context) (string, bool) {
	m, ok := ctx.Value(methodKey).(string)
	return m, ok
}

// ServiceName -> the service part of the method being served, e.g. "TestAPI"
func ServiceName(ctx context.Context) (string, bool) {
	m, ok := MethodName(ctx)
	if !ok {
		return "", false
	}
	svc, _, _ := SplitMethod(m)
	if i := strings.LastIndexByte(svc, '.'); i >= 0 {
		svc = svc[i+1:]
	}
	return svc, true
}

// PackageName -> the protobuf package of the method being served, e.g. "test"
func PackageName(ctx context.Context) (string, bool) {
	m, ok := MethodName(ctx)
	if !ok {
		return "", false
	}
	svc, _, _ := SplitMethod(m)
	i := strings.LastIndexByte(svc, '.')
	if i < 0 {
		return "", true
	}
	return svc[:i], true
}

// SplitMethod splits "pkg.Service/Method" into "pkg.Service" and "Method".
func SplitMethod(method string) (service, name string, ok bool) {
	i := strings.IndexByte(method, '/')
	if i < 0 {
		return "", "", false
	}
	return method[:i], method[i+1:], true
}

func withRequestHeader(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, requestHeaderKey, h)
}

// HTTPRequestHeader -> the headers of the inbound request being served.
// Handlers must not modify the returned header.
func HTTPRequestHeader(ctx context.Context) (http.Header, bool) {
	h, ok := ctx.Value(requestHeaderKey).(http.Header)
	return h, ok
}

func withContentType(ctx context.Context, ct ContentType) context.Context {
	return context.WithValue(ctx, contentTypeKey, ct)
}

// RequestContentType -> the encoding resolved for the request being served
func RequestContentType(ctx context.Context) (ContentType, bool) {
	ct, ok := ctx.Value(contentTypeKey).(ContentType)
	return ct, ok
}

// WithHTTPRequestHeaders attaches extra headers to outgoing client calls made
// with ctx. They are merged over the client's configured headers.
func WithHTTPRequestHeaders(ctx context.Context, h http.Header) context.Context {
	cp := make(http.Header, len(h))
	for k, vs := range h {
		cp[k] = append([]string(nil), vs...)
	}
	return context.WithValue(ctx, outgoingHeaderKey, cp)
}

func HTTPRequestHeaders(ctx context.Context) (http.Header, bool) {
	h, ok := ctx.Value(outgoingHeaderKey).(http.Header)
	return h, ok
}
