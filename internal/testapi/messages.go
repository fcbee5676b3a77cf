// Package testapi builds the test.PingRequest and test.PingResponse protobuf
// messages at runtime, so tests can exercise real protobuf and protojson
// encodings without generated code.
package testapi

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	ServiceFQN = "test.TestAPI"
	PingMethod = ServiceFQN + "/Ping"
	BoomMethod = ServiceFQN + "/Boom"
)

var (
	pingRequest  protoreflect.MessageDescriptor
	pingResponse protoreflect.MessageDescriptor
)

func init() {
	nameField := func() []*descriptorpb.FieldDescriptorProto {
		return []*descriptorpb.FieldDescriptorProto{{
			Name:     proto.String("name"),
			JsonName: proto.String("name"),
			Number:   proto.Int32(2),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
		}}
	}
	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("test/test.proto"),
		Package: proto.String("test"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("PingRequest"), Field: nameField()},
			{Name: proto.String("PingResponse"), Field: nameField()},
		},
	}
	fd, err := protodesc.NewFile(file, new(protoregistry.Files))
	if err != nil {
		panic(err)
	}
	pingRequest = fd.Messages().ByName("PingRequest")
	pingResponse = fd.Messages().ByName("PingResponse")
}

// NewPingRequest returns a test.PingRequest carrying name.
func NewPingRequest(name string) *dynamicpb.Message {
	return withName(dynamicpb.NewMessage(pingRequest), name)
}

// NewPingResponse returns a test.PingResponse carrying name.
func NewPingResponse(name string) *dynamicpb.Message {
	return withName(dynamicpb.NewMessage(pingResponse), name)
}

func EmptyPingRequest() *dynamicpb.Message {
	return dynamicpb.NewMessage(pingRequest)
}

func EmptyPingResponse() *dynamicpb.Message {
	return dynamicpb.NewMessage(pingResponse)
}

// Name reads the name field of a ping message.
func Name(msg proto.Message) string {
	m := msg.ProtoReflect()
	return m.Get(m.Descriptor().Fields().ByName("name")).String()
}

func withName(msg *dynamicpb.Message, name string) *dynamicpb.Message {
	if name != "" {
		msg.Set(msg.Descriptor().Fields().ByName("name"), protoreflect.ValueOfString(name))
	}
	return msg
}
