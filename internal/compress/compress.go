// Package compress round-trips raw HTML bytes through brotli for the
// Storage table's raw_html column. The codec is an implementation detail:
// callers only need Compress/Decompress to round-trip.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Quality is the brotli compression level used for Storage rows. 5 trades
// a little ratio for throughput, since the writer compresses on the hot
// path of every save_page batch.
const Quality = 5

// Compress brotli-encodes raw, typically HTML bytes straight off the wire.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, Quality)
	if _, err := writer.Write(raw); err != nil {
		return nil, fmt.Errorf("compress: write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("compress: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inverts Compress.
func Decompress(compressed []byte) ([]byte, error) {
	reader := brotli.NewReader(bytes.NewReader(compressed))
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return raw, nil
}
