package twirp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"twirp/internal/errs"
	"twirp/rpc/compress"

	"github.com/gotomicro/ekit/bean/option"
	"go.uber.org/zap"
)

// invalidRouteMeta is the meta key carrying "<verb> <path>" of a request the
// router could not route.
const invalidRouteMeta = "twirp_invalid_route"

type route struct {
	method  string
	handler Handler
	codec   *Codec
}

// Router maps request paths to method handlers. Routes are added while the
// service is assembled; once the router starts serving, the table is read-only
// and shared by every request without locking.
type Router struct {
	routes       map[string]route
	interceptors []Interceptor
	codec        *Codec
	compressors  map[string]compress.Compressor
	notFound     http.Handler
	logger       *zap.Logger
	maxBodyBytes int64
	sealed       atomic.Bool
}

func NewRouter(opts ...option.Option[Router]) *Router {
	r := &Router{
		routes:      make(map[string]route, 8),
		codec:       NewCodec(),
		compressors: make(map[string]compress.Compressor, 4),
		notFound:    NotFoundHandler(),
		logger:      zap.L(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithInterceptors -> wrap every method registered afterwards, first interceptor outermost
func WithInterceptors(interceptors ...Interceptor) option.Option[Router] {
	return func(r *Router) {
		r.interceptors = append(r.interceptors, interceptors...)
	}
}

func WithLogger(logger *zap.Logger) option.Option[Router] {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithCodec(codec *Codec) option.Option[Router] {
	return func(r *Router) {
		r.codec = codec
	}
}

// WithCompressors -> content codings accepted on requests and offered on responses
func WithCompressors(compressors ...compress.Compressor) option.Option[Router] {
	return func(r *Router) {
		for _, c := range compressors {
			r.compressors[c.Name()] = c
		}
	}
}

// WithNotFoundHandler -> responder for paths the router does not own
func WithNotFoundHandler(h http.Handler) option.Option[Router] {
	return func(r *Router) {
		r.notFound = h
	}
}

// WithMaxRequestBytes -> reject request bodies larger than n bytes
func WithMaxRequestBytes(n int64) option.Option[Router] {
	return func(r *Router) {
		r.maxBodyBytes = n
	}
}

// AddMethod registers h under "/<method>", where method is "<package>.<Service>/<Method>".
func (r *Router) AddMethod(method string, h Handler) error {
	if err := validateMethod(method); err != nil {
		return err
	}
	if h == nil {
		return errs.ErrNilHandler
	}
	return r.add("/"+method, route{
		method:  method,
		handler: ChainInterceptors(r.interceptors...)(h),
		codec:   r.codec,
	})
}

// Nest mounts every route of sub under prefix. The prefix is joined to the
// sub-router paths as plain strings, so "/twirp" and "test.TestAPI/Ping" serve
// "/twirp/test.TestAPI/Ping". The parent's interceptors wrap the nested routes.
func (r *Router) Nest(prefix string, sub *Router) error {
	if sub == nil {
		return errs.ErrNilRouter
	}
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		return errs.ErrInvalidPrefix
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if r.sealed.Load() {
		return errs.ErrRouterSealed
	}
	// all or nothing: check every path before mounting any
	paths := sub.Methods()
	for _, path := range paths {
		if _, ok := r.routes[prefix+path]; ok {
			return errs.DuplicateRoute(prefix + path)
		}
	}
	chain := ChainInterceptors(r.interceptors...)
	for _, path := range paths {
		rt := sub.routes[path]
		rt.handler = chain(rt.handler)
		if err := r.add(prefix+path, rt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) add(path string, rt route) error {
	if r.sealed.Load() {
		return errs.ErrRouterSealed
	}
	if _, ok := r.routes[path]; ok {
		return errs.DuplicateRoute(path)
	}
	r.routes[path] = rt
	return nil
}

// Methods -> every routed path, sorted
func (r *Router) Methods() []string {
	res := make([]string, 0, len(r.routes))
	for path := range r.routes {
		res = append(res, path)
	}
	sort.Strings(res)
	return res
}

func validateMethod(method string) error {
	svc, name, ok := SplitMethod(method)
	if !ok || svc == "" || name == "" || strings.ContainsAny(name, "/.") ||
		strings.HasPrefix(svc, ".") || strings.HasSuffix(svc, ".") ||
		strings.ContainsAny(method, " \t\r\n?#") {
		return errs.ErrInvalidMethod
	}
	return nil
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.sealed.Store(true)
	rt, ok := r.routes[req.URL.Path]
	if !ok {
		r.logger.Debug("twirp: no route", zap.String("verb", req.Method), zap.String("path", req.URL.Path))
		r.notFound.ServeHTTP(w, req)
		return
	}
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		e := Errorf(Unimplemented, "unsupported method %s (only POST is allowed)", req.Method).
			WithMeta(invalidRouteMeta, req.Method+" "+req.URL.Path)
		writeError(w, e, http.StatusMethodNotAllowed)
		return
	}

	ct := DetectContentType(req.Header.Get("Content-Type"))
	body, err := r.readBody(w, req)
	if err != nil {
		r.fail(w, rt.method, err)
		return
	}

	ctx := withMethod(req.Context(), rt.method)
	ctx = withRequestHeader(ctx, req.Header)
	ctx = withContentType(ctx, ct)
	resp, err := r.invoke(ctx, rt, &Invocation{
		Method:      rt.method,
		ContentType: ct,
		Body:        body,
		Codec:       rt.codec,
	})
	if err != nil {
		r.fail(w, rt.method, err)
		return
	}
	r.writeResponse(w, req, rt.method, rt.codec.ContentType(ct), resp)
}

func (r *Router) readBody(w http.ResponseWriter, req *http.Request) ([]byte, error) {
	reader := req.Body
	if r.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, req.Body, r.maxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, Errorf(InvalidArgument, "request body exceeds %d bytes", tooLarge.Limit)
		}
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, Errorf(Malformed, "failed to read request body: %v", err)
	}
	enc := strings.TrimSpace(req.Header.Get("Content-Encoding"))
	if enc == "" || enc == "identity" {
		return body, nil
	}
	c, ok := r.compressors[enc]
	if !ok {
		return nil, NewError(Malformed, errs.ErrUnknownEncoding.Error()).WithMeta("content_encoding", enc)
	}
	body, err = c.Uncompress(body)
	if err != nil {
		return nil, Errorf(Malformed, "failed to uncompress %s request body: %v", enc, err)
	}
	return body, nil
}

// invoke runs the handler, turning a panic into an internal error.
func (r *Router) invoke(ctx context.Context, rt route, inv *Invocation) (resp []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("twirp: handler panicked",
				zap.String("method", rt.method),
				zap.Any("panic", p),
				zap.Stack("stack"))
			resp, err = nil, InternalError("internal error: handler panicked")
		}
	}()
	return rt.handler.Invoke(ctx, inv)
}

func (r *Router) fail(w http.ResponseWriter, method string, err error) {
	e := ToError(err)
	if e.Code == Internal || e.Code == Unknown || e.Code == DataLoss {
		r.logger.Error("twirp: method failed",
			zap.String("method", method),
			zap.String("code", string(e.Code)),
			zap.Error(err))
	} else {
		r.logger.Debug("twirp: method failed",
			zap.String("method", method),
			zap.String("code", string(e.Code)),
			zap.String("msg", e.Msg))
	}
	writeError(w, e, 0)
}

// writeResponse writes a fully encoded success body. Nothing is written before
// the success or error outcome is known.
func (r *Router) writeResponse(w http.ResponseWriter, req *http.Request, method, contentType string, body []byte) {
	h := w.Header()
	if c := r.negotiateEncoding(req.Header.Get("Accept-Encoding")); c != nil {
		compressed, err := c.Compress(body)
		if err != nil {
			r.logger.Warn("twirp: response compression failed",
				zap.String("method", method), zap.String("encoding", c.Name()), zap.Error(err))
		} else {
			body = compressed
			h.Set("Content-Encoding", c.Name())
		}
		h.Add("Vary", "Accept-Encoding")
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		r.logger.Warn("twirp: write response failed", zap.String("method", method), zap.Error(err))
	}
}

// negotiateEncoding picks the first registered coding listed in Accept-Encoding.
func (r *Router) negotiateEncoding(accept string) compress.Compressor {
	if accept == "" || len(r.compressors) == 0 {
		return nil
	}
	for _, part := range strings.Split(accept, ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		if c, ok := r.compressors[strings.TrimSpace(token)]; ok {
			return c
		}
	}
	return nil
}

// WriteError writes err as a structured error envelope with the status mapped
// from its code. Use it from plain http.Handlers mounted next to a Router.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, ToError(err), 0)
}

func writeError(w http.ResponseWriter, e *Error, status int) {
	if status == 0 {
		status = e.HTTPStatus()
	}
	body := EncodeError(e)
	h := w.Header()
	h.Del("Content-Encoding")
	h.Set("Content-Type", ContentTypeJSON)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// NotFoundHandler answers any path with 404 and an unimplemented envelope, so
// typed clients can decode misrouted calls like any other error.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		e := NewError(Unimplemented, fmt.Sprintf("no handler for %s %s", req.Method, req.URL.Path)).
			WithMeta(invalidRouteMeta, req.Method+" "+req.URL.Path)
		writeError(w, e, http.StatusNotFound)
	})
}
