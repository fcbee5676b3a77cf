package compress

// Compressor -> an HTTP content coding applied to whole message bodies
type Compressor interface {
	// Name is the Content-Encoding token, e.g. "gzip"
	Name() string
	Compress(data []byte) ([]byte, error)
	Uncompress(data []byte) ([]byte, error)
}
