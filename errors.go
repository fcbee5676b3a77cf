package twirp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode is the closed set of protocol error categories. The string value
// is the name sent on the wire.
type ErrorCode string

const (
	Canceled           ErrorCode = "canceled"
	Unknown            ErrorCode = "unknown"
	InvalidArgument    ErrorCode = "invalid_argument"
	Malformed          ErrorCode = "malformed"
	DeadlineExceeded   ErrorCode = "deadline_exceeded"
	NotFound           ErrorCode = "not_found"
	BadRoute           ErrorCode = "bad_route"
	AlreadyExists      ErrorCode = "already_exists"
	PermissionDenied   ErrorCode = "permission_denied"
	Unauthenticated    ErrorCode = "unauthenticated"
	ResourceExhausted  ErrorCode = "resource_exhausted"
	FailedPrecondition ErrorCode = "failed_precondition"
	Aborted            ErrorCode = "aborted"
	OutOfRange         ErrorCode = "out_of_range"
	Unimplemented      ErrorCode = "unimplemented"
	Internal           ErrorCode = "internal"
	Unavailable        ErrorCode = "unavailable"
	DataLoss           ErrorCode = "dataloss"
)

var codeStatus = map[ErrorCode]int{
	Canceled:           http.StatusRequestTimeout,
	Unknown:            http.StatusInternalServerError,
	InvalidArgument:    http.StatusBadRequest,
	Malformed:          http.StatusBadRequest,
	DeadlineExceeded:   http.StatusRequestTimeout,
	NotFound:           http.StatusNotFound,
	BadRoute:           http.StatusNotFound,
	AlreadyExists:      http.StatusConflict,
	PermissionDenied:   http.StatusForbidden,
	Unauthenticated:    http.StatusUnauthorized,
	ResourceExhausted:  http.StatusTooManyRequests,
	FailedPrecondition: http.StatusPreconditionFailed,
	Aborted:            http.StatusConflict,
	OutOfRange:         http.StatusBadRequest,
	Unimplemented:      http.StatusNotFound,
	Internal:           http.StatusInternalServerError,
	Unavailable:        http.StatusServiceUnavailable,
	DataLoss:           http.StatusInternalServerError,
}

// IsValid reports whether c belongs to the closed code set.
func (c ErrorCode) IsValid() bool {
	_, ok := codeStatus[c]
	return ok
}

// HTTPStatus -> the canonical status for c. Values outside the closed set are
// treated as internal.
func (c ErrorCode) HTTPStatus() int {
	if st, ok := codeStatus[c]; ok {
		return st
	}
	return http.StatusInternalServerError
}

func ServerHTTPStatusFromErrorCode(code ErrorCode) int {
	return code.HTTPStatus()
}

// Error is the error envelope. Every failure crossing the HTTP boundary, in
// either direction, is one of these.
type Error struct {
	Code ErrorCode         `json:"code"`
	Msg  string            `json:"msg"`
	Meta map[string]string `json:"meta,omitempty"`

	// StatusCode is the HTTP status the error arrived with. Only the client sets it.
	StatusCode int `json:"-"`

	cause error
}

func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	return fmt.Sprintf("twirp error %s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithMeta returns a copy of e with key set to value.
func (e *Error) WithMeta(key, value string) *Error {
	cp := *e
	cp.Meta = make(map[string]string, len(e.Meta)+1)
	for k, v := range e.Meta {
		cp.Meta[k] = v
	}
	cp.Meta[key] = value
	return &cp
}

func (e *Error) MetaValue(key string) string {
	return e.Meta[key]
}

// HTTPStatus -> the status a server writes for e
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// GRPCStatus lets status.FromError and status.Convert understand twirp errors.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(grpcCode(e.Code), e.Msg)
}

func CanceledError(msg string) *Error           { return NewError(Canceled, msg) }
func UnknownError(msg string) *Error            { return NewError(Unknown, msg) }
func InvalidArgumentError(msg string) *Error    { return NewError(InvalidArgument, msg) }
func MalformedError(msg string) *Error          { return NewError(Malformed, msg) }
func DeadlineExceededError(msg string) *Error   { return NewError(DeadlineExceeded, msg) }
func NotFoundError(msg string) *Error           { return NewError(NotFound, msg) }
func BadRouteError(msg string) *Error           { return NewError(BadRoute, msg) }
func AlreadyExistsError(msg string) *Error      { return NewError(AlreadyExists, msg) }
func PermissionDeniedError(msg string) *Error   { return NewError(PermissionDenied, msg) }
func UnauthenticatedError(msg string) *Error    { return NewError(Unauthenticated, msg) }
func ResourceExhaustedError(msg string) *Error  { return NewError(ResourceExhausted, msg) }
func FailedPreconditionError(msg string) *Error { return NewError(FailedPrecondition, msg) }
func AbortedError(msg string) *Error            { return NewError(Aborted, msg) }
func OutOfRangeError(msg string) *Error         { return NewError(OutOfRange, msg) }
func UnimplementedError(msg string) *Error      { return NewError(Unimplemented, msg) }
func InternalError(msg string) *Error           { return NewError(Internal, msg) }
func UnavailableError(msg string) *Error        { return NewError(Unavailable, msg) }
func DataLossError(msg string) *Error           { return NewError(DataLoss, msg) }

// InternalErrorWith wraps err as an internal error, keeping it as the cause.
func InternalErrorWith(err error) *Error {
	e := InternalError(err.Error())
	e.cause = err
	return e
}

// EncodeError -> the structured wire body of e. The error body is always JSON,
// whatever encoding the request used.
func EncodeError(e *Error) []byte {
	bs, err := json.Marshal(e)
	if err != nil {
		// map[string]string and strings always marshal
		panic(err)
	}
	return bs
}

// ParseError strictly decodes an error body.
func ParseError(body []byte) (*Error, error) {
	e := &Error{}
	if err := json.Unmarshal(body, e); err != nil {
		return nil, err
	}
	if e.Code == "" {
		return nil, errors.New("twirp: error body has no code")
	}
	if !e.Code.IsValid() {
		return nil, fmt.Errorf("twirp: unknown error code %q", e.Code)
	}
	return e, nil
}

// DecodeError decodes an error body and fails closed: anything that is not a
// complete envelope becomes an internal error carrying the raw body.
func DecodeError(body []byte) *Error {
	e, err := ParseError(body)
	if err != nil {
		return InternalError(string(body))
	}
	return e
}

var errNilError = errors.New("twirp: nil *twirp.Error returned as error")

// ToError coerces any error into an envelope.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		if te == nil {
			// a nil *Error returned through the error interface is non-nil
			return InternalErrorWith(errNilError)
		}
		return te
	}
	switch {
	case errors.Is(err, context.Canceled):
		e := CanceledError(err.Error())
		e.cause = err
		return e
	case errors.Is(err, context.DeadlineExceeded):
		e := DeadlineExceededError(err.Error())
		e.cause = err
		return e
	}
	if st, ok := status.FromError(err); ok {
		e := NewError(fromGRPCCode(st.Code()), st.Message())
		e.cause = err
		return e
	}
	return InternalErrorWith(err)
}

// CodeOf -> the code err would be written with, empty for nil
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return ToError(err).Code
}

func statusMeta(code int) string {
	return strconv.Itoa(code)
}

var grpcCodes = map[ErrorCode]codes.Code{
	Canceled:           codes.Canceled,
	Unknown:            codes.Unknown,
	InvalidArgument:    codes.InvalidArgument,
	Malformed:          codes.InvalidArgument,
	DeadlineExceeded:   codes.DeadlineExceeded,
	NotFound:           codes.NotFound,
	BadRoute:           codes.Unimplemented,
	AlreadyExists:      codes.AlreadyExists,
	PermissionDenied:   codes.PermissionDenied,
	Unauthenticated:    codes.Unauthenticated,
	ResourceExhausted:  codes.ResourceExhausted,
	FailedPrecondition: codes.FailedPrecondition,
	Aborted:            codes.Aborted,
	OutOfRange:         codes.OutOfRange,
	Unimplemented:      codes.Unimplemented,
	Internal:           codes.Internal,
	Unavailable:        codes.Unavailable,
	DataLoss:           codes.DataLoss,
}

func grpcCode(c ErrorCode) codes.Code {
	if gc, ok := grpcCodes[c]; ok {
		return gc
	}
	return codes.Internal
}

func fromGRPCCode(c codes.Code) ErrorCode {
	switch c {
	case codes.Canceled:
		return Canceled
	case codes.Unknown:
		return Unknown
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.DeadlineExceeded:
		return DeadlineExceeded
	case codes.NotFound:
		return NotFound
	case codes.AlreadyExists:
		return AlreadyExists
	case codes.PermissionDenied:
		return PermissionDenied
	case codes.ResourceExhausted:
		return ResourceExhausted
	case codes.FailedPrecondition:
		return FailedPrecondition
	case codes.Aborted:
		return Aborted
	case codes.OutOfRange:
		return OutOfRange
	case codes.Unimplemented:
		return Unimplemented
	case codes.Unavailable:
		return Unavailable
	case codes.DataLoss:
		return DataLoss
	case codes.Unauthenticated:
		return Unauthenticated
	default:
		return Internal
	}
}
