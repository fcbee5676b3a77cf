package serialize_test

import (
	"testing"

	"twirp/internal/errs"
	"twirp/internal/testapi"
	"twirp/rpc/serialize"
	"twirp/rpc/serialize/json"
	"twirp/rpc/serialize/proto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protobuf "google.golang.org/protobuf/proto"
)

func TestSerializer_RoundTrip(t *testing.T) {
	testCases := []struct {
		name        string
		serializer  serialize.Serializer
		contentType string
	}{
		{name: "proto", serializer: proto.Serializer{}, contentType: "application/protobuf"},
		{name: "proto deterministic", serializer: proto.Serializer{Deterministic: true}, contentType: "application/protobuf"},
		{name: "json", serializer: json.Serializer{}, contentType: "application/json"},
		{name: "json proto names", serializer: json.Serializer{UseProtoNames: true, EmitUnpopulated: true}, contentType: "application/json"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.contentType, tc.serializer.ContentType())
			for _, name := range []string{"abc", "", "日本語"} {
				in := testapi.NewPingRequest(name)
				data, err := tc.serializer.Encode(in)
				require.NoError(t, err)
				out := testapi.EmptyPingRequest()
				require.NoError(t, tc.serializer.Decode(data, out))
				assert.True(t, protobuf.Equal(in, out))
				assert.Equal(t, name, testapi.Name(out))
			}
		})
	}
}

func TestJSONSerializer_Shape(t *testing.T) {
	data, err := json.Serializer{}.Encode(testapi.NewPingResponse("abc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"abc"}`, string(data))

	data, err = json.Serializer{EmitUnpopulated: true}.Encode(testapi.EmptyPingResponse())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":""}`, string(data))
}

func TestJSONSerializer_PlainStruct(t *testing.T) {
	type anyRequest struct {
		Msg string `json:"msg"`
	}
	s := json.Serializer{}
	data, err := s.Encode(&anyRequest{Msg: "hello"})
	require.NoError(t, err)
	assert.Equal(t, `{"msg":"hello"}`, string(data))
	out := &anyRequest{}
	require.NoError(t, s.Decode(data, out))
	assert.Equal(t, "hello", out.Msg)
}

func TestJSONSerializer_UnknownField(t *testing.T) {
	body := []byte(`{"name":"abc","extra":1}`)
	assert.Error(t, json.Serializer{}.Decode(body, testapi.EmptyPingRequest()))

	out := testapi.EmptyPingRequest()
	require.NoError(t, json.Serializer{DiscardUnknown: true}.Decode(body, out))
	assert.Equal(t, "abc", testapi.Name(out))
}

func TestProtoSerializer_NotProto(t *testing.T) {
	s := proto.Serializer{}
	_, err := s.Encode("not a message")
	assert.Equal(t, errs.ProtoSerializeTypError, err)
	var out string
	assert.Equal(t, errs.ProtoDeserializeTypError, s.Decode([]byte{}, &out))
}

func TestProtoSerializer_Malformed(t *testing.T) {
	// field 2, wire type length-delimited, length far beyond the buffer
	err := proto.Serializer{}.Decode([]byte{0x12, 0x7f, 0x01}, testapi.EmptyPingRequest())
	assert.Error(t, err)
}
