package serialize

// Serializer -> wire encoding of request and response messages
type Serializer interface {
	// ContentType is the media type sent in the Content-Type header
	ContentType() string
	Encode(val any) ([]byte, error)
	Decode(data []byte, val any) error
}
