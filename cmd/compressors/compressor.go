package compressors

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrUnsupportedCompression is returned when an unsupported compression type is requested
var ErrUnsupportedCompression = errors.New("unsupported compression type")

// Compression names accepted by GetCompressor
const (
	Zstd = "zstd"
	LZ4  = "lz4"
	Gzip = "gzip"
	None = "none"
)

// Compressor defines the interface for compression handlers
type Compressor interface {
	// Compress compresses the input data
	Compress(data []byte, level int) ([]byte, error)

	// Decompress reverses Compress
	Decompress(data []byte) ([]byte, error)

	// Name returns the compression name used in config (e.g., "zstd")
	Name() string

	// Extension returns the file extension for this compression (e.g., ".zst", ".lz4", ".gz")
	Extension() string

	// DefaultLevel returns the default compression level
	DefaultLevel() int
}

// GetCompressor returns the appropriate compressor based on the compression string
func GetCompressor(compression string) (Compressor, error) {
	switch compression {
	case Zstd:
		return NewZstdCompressor(), nil
	case LZ4:
		return NewLZ4Compressor(), nil
	case Gzip:
		return NewGzipCompressor(), nil
	case None:
		return NewNoneCompressor(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, compression)
	}
}

// frame magic numbers, see RFC 1952, RFC 8878 and the lz4 frame format
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect returns the compressor whose frame header starts data, or nil for plain data.
func Detect(data []byte) Compressor {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return NewZstdCompressor()
	case bytes.HasPrefix(data, lz4Magic):
		return NewLZ4Compressor()
	case bytes.HasPrefix(data, gzipMagic):
		return NewGzipCompressor()
	default:
		return nil
	}
}

// Decode decompresses data when it carries a known frame header and
// returns it unchanged otherwise. The second return value names the
// compression that was removed ("none" for plain data).
func Decode(data []byte) ([]byte, string, error) {
	c := Detect(data)
	if c == nil {
		return data, None, nil
	}

	out, err := c.Decompress(data)
	if err != nil {
		return nil, c.Name(), fmt.Errorf("failed to decode %s payload: %w", c.Name(), err)
	}
	return out, c.Name(), nil
}
