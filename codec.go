package twirp

import (
	"twirp/rpc/serialize"
	"twirp/rpc/serialize/json"
	"twirp/rpc/serialize/proto"
)

// Codec holds one serializer per content type. The two branches are
// independent: a payload is only ever decoded with the serializer of the
// content type it was encoded with.
type Codec struct {
	Binary     serialize.Serializer
	Structured serialize.Serializer
}

func NewCodec() *Codec {
	return &Codec{
		Binary:     proto.Serializer{},
		Structured: json.Serializer{},
	}
}

func (c *Codec) serializer(ct ContentType) serialize.Serializer {
	if ct == Binary {
		return c.Binary
	}
	return c.Structured
}

// ContentType -> the Content-Type header for payloads of the ct branch, as
// reported by its serializer. A value that would not be detected back as ct
// falls back to ct.Header().
func (c *Codec) ContentType(ct ContentType) string {
	h := c.serializer(ct).ContentType()
	if h == "" || DetectContentType(h) != ct {
		return ct.Header()
	}
	return h
}

// Encode -> serialize v with the ct branch. Failures are internal errors.
func (c *Codec) Encode(ct ContentType, v any) ([]byte, error) {
	data, err := c.serializer(ct).Encode(v)
	if err != nil {
		e := Errorf(Internal, "failed to encode %s message: %v", ct, err)
		e.cause = err
		return nil, e
	}
	return data, nil
}

// Decode -> deserialize data into v with the ct branch. Failures are
// invalid_argument errors.
func (c *Codec) Decode(ct ContentType, data []byte, v any) error {
	if err := c.serializer(ct).Decode(data, v); err != nil {
		e := Errorf(InvalidArgument, "failed to decode %s message: %v", ct, err)
		e.cause = err
		return e
	}
	return nil
}
