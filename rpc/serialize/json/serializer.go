package json

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Serializer -> JSON serialization protocol, the structured wire form.
// Protobuf messages go through protojson, anything else through encoding/json.
type Serializer struct {
	// EmitUnpopulated writes zero-valued fields instead of omitting them
	EmitUnpopulated bool
	// UseProtoNames writes snake_case field names instead of lowerCamelCase
	UseProtoNames bool
	// DiscardUnknown ignores unknown fields while decoding
	DiscardUnknown bool
}

func (s Serializer) ContentType() string {
	return "application/json"
}

func (s Serializer) Encode(val any) ([]byte, error) {
	if msg, ok := val.(proto.Message); ok {
		return protojson.MarshalOptions{
			EmitUnpopulated: s.EmitUnpopulated,
			UseProtoNames:   s.UseProtoNames,
		}.Marshal(msg)
	}
	return json.Marshal(val)
}

func (s Serializer) Decode(data []byte, val any) error {
	if msg, ok := val.(proto.Message); ok {
		return protojson.UnmarshalOptions{DiscardUnknown: s.DiscardUnknown}.Unmarshal(data, msg)
	}
	return json.Unmarshal(data, val)
}
