package proto

import (
	"twirp/internal/errs"

	"google.golang.org/protobuf/proto"
)

// Serializer -> Protobuf serialization protocol, the binary wire form
type Serializer struct {
	// Deterministic orders map entries so equal messages encode to equal bytes
	Deterministic bool
	// DiscardUnknown drops fields the receiving schema does not know
	DiscardUnknown bool
}

func (s Serializer) ContentType() string {
	return "application/protobuf"
}

func (s Serializer) Encode(val any) ([]byte, error) {
	msg, ok := val.(proto.Message)
	if !ok {
		return nil, errs.ProtoSerializeTypError
	}
	return proto.MarshalOptions{Deterministic: s.Deterministic}.Marshal(msg)
}

func (s Serializer) Decode(data []byte, val any) error {
	msg, ok := val.(proto.Message)
	if !ok {
		return errs.ProtoDeserializeTypError
	}
	return proto.UnmarshalOptions{DiscardUnknown: s.DiscardUnknown}.Unmarshal(data, msg)
}
