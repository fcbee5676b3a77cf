package twirp

import (
	"mime"
	"strings"
)

// ContentType is the wire encoding of one request. It is resolved once from the
// request headers and governs both decoding the request and encoding the
// success response.
type ContentType int

const (
	// Structured is JSON. It is the zero value and the fallback.
	Structured ContentType = iota
	// Binary is protobuf.
	Binary
)

const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/protobuf"
)

// DetectContentType -> resolve the encoding named by a Content-Type header.
// Absent or unrecognised values are Structured, never Binary.
func DetectContentType(header string) ContentType {
	if header == "" {
		return Structured
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	switch mt {
	case ContentTypeProtobuf, "application/x-protobuf":
		return Binary
	default:
		return Structured
	}
}

// Header -> the Content-Type header value for c
func (c ContentType) Header() string {
	if c == Binary {
		return ContentTypeProtobuf
	}
	return ContentTypeJSON
}

func (c ContentType) String() string {
	if c == Binary {
		return "binary"
	}
	return "structured"
}
