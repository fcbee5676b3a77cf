package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMethod   = errors.New("twirp: method must look like <package>.<Service>/<Method>")
	ErrNilHandler      = errors.New("twirp: handler cannot be nil")
	ErrRouterSealed    = errors.New("twirp: router is serving, routes are read-only")
	ErrInvalidBaseURL  = errors.New("twirp: base url must be an absolute http or https url")
	ErrInvalidPrefix   = errors.New("twirp: mount prefix must start with '/'")
	ErrNilRouter       = errors.New("twirp: cannot nest a nil router")
	ErrNilResponse     = errors.New("twirp: handler returned a nil response")
	ErrUnknownEncoding = errors.New("twirp: unsupported content encoding")
	ErrServiceType     = errors.New("twirp: service must be a pointer to a struct")
)

var (
	ProtoSerializeTypError   = errors.New("serialize: serialization must be proto.Message type")
	ProtoDeserializeTypError = errors.New("serialize: deserialization must be proto.Message type")
)

func DuplicateRoute(path string) error {
	return fmt.Errorf("twirp: route %s is already registered", path)
}

func InvalidHeader(key string) error {
	return fmt.Errorf("twirp: invalid header field %q", key)
}

func StubField(name string) error {
	return fmt.Errorf("twirp: field %s must be func(context.Context, *Req) (*Resp, error)", name)
}
