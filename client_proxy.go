package twirp

import (
	"context"
	"reflect"

	"twirp/internal/errs"

	"google.golang.org/protobuf/proto"
)

// Service is a client stub: a pointer to a struct whose exported func fields
// have the shape func(context.Context, *Req) (*Resp, error), with Req and Resp
// generated protobuf messages. ServiceName returns "<package>.<Service>".
//
// The method name defaults to the field name; a `twirp:"Name"` tag overrides it.
type Service interface {
	ServiceName() string
}

// Caller is the part of *Client a stub needs.
type Caller interface {
	Call(ctx context.Context, method string, req, resp proto.Message) error
}

var (
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType   = reflect.TypeOf((*error)(nil)).Elem()
	protoType = reflect.TypeOf((*proto.Message)(nil)).Elem()
)

// InitClientProxy fills every func field of srv with a call through c.
func InitClientProxy(c Caller, srv Service) error {
	val := reflect.ValueOf(srv)
	if val.Kind() != reflect.Pointer || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return errs.ErrServiceType
	}
	valElem := val.Elem()
	typElem := valElem.Type()
	for i := 0; i < typElem.NumField(); i++ {
		fieldTyp := typElem.Field(i)
		fieldVal := valElem.Field(i)
		if !fieldVal.CanSet() || fieldTyp.Type.Kind() != reflect.Func {
			continue
		}
		if !isStubFunc(fieldTyp.Type) {
			return errs.StubField(fieldTyp.Name)
		}
		name := fieldTyp.Name
		if tag, ok := fieldTyp.Tag.Lookup("twirp"); ok && tag != "" {
			name = tag
		}
		method := srv.ServiceName() + "/" + name
		if err := validateMethod(method); err != nil {
			return err
		}
		fieldVal.Set(reflect.MakeFunc(fieldTyp.Type, stubFunc(c, method, fieldTyp.Type.Out(0))))
	}
	return nil
}

func stubFunc(c Caller, method string, outTyp reflect.Type) func(args []reflect.Value) []reflect.Value {
	return func(args []reflect.Value) []reflect.Value {
		ctx, _ := args[0].Interface().(context.Context)
		if ctx == nil {
			ctx = context.Background()
		}
		in, _ := args[1].Interface().(proto.Message)
		out := reflect.New(outTyp.Elem())
		if err := c.Call(ctx, method, in, out.Interface().(proto.Message)); err != nil {
			return []reflect.Value{reflect.Zero(outTyp), reflect.ValueOf(&err).Elem()}
		}
		// a nil error has to be a typed zero value
		return []reflect.Value{out, reflect.Zero(errType)}
	}
}

func isStubFunc(typ reflect.Type) bool {
	return typ.NumIn() == 2 && typ.NumOut() == 2 &&
		typ.In(0) == ctxType &&
		typ.In(1).Implements(protoType) &&
		typ.Out(0).Kind() == reflect.Pointer && typ.Out(0).Elem().Kind() == reflect.Struct &&
		typ.Out(0).Implements(protoType) &&
		typ.Out(1) == errType
}
