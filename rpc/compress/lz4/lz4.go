package lz4

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Compressor implements compress.Compressor with the lz4 frame format.
type Compressor struct{}

func (Compressor) Name() string {
	return "lz4"
}

// Compress data
func (Compressor) Compress(data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	w := lz4.NewWriter(buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Uncompress data
func (Compressor) Uncompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}
