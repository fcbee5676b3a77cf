package snappy

import (
	"bytes"
	"io"

	"github.com/golang/snappy"
)

// Compressor implements compress.Compressor with the snappy framing format
type Compressor struct{}

func (Compressor) Name() string {
	return "snappy"
}

// Compress data
func (Compressor) Compress(data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	w := snappy.NewBufferedWriter(buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	// Close flushes buffered blocks into buf
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Uncompress data
func (Compressor) Uncompress(data []byte) ([]byte, error) {
	return io.ReadAll(snappy.NewReader(bytes.NewReader(data)))
}
