// Package formatters serializes the combined rows of a comparison.
package formatters

import (
	"errors"
	"fmt"

	"github.com/airframesio/country-compare/cmd/comparison"
)

// Format type constants
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// ErrUnknownFormat is returned for an unsupported export format
var ErrUnknownFormat = errors.New("unknown export format")

// Formatter defines the interface for export format handlers
type Formatter interface {
	// Format converts the combined rows of a result to the target format
	Format(res *comparison.Result) ([]byte, error)

	// Extension returns the file extension for this format (e.g., ".jsonl", ".csv", ".parquet")
	Extension() string

	// MIMEType returns the MIME type for this format
	MIMEType() string
}

// GetFormatter returns the formatter for format. compression only affects
// parquet, which compresses its column chunks itself.
func GetFormatter(format, compression string) (Formatter, error) {
	switch format {
	case FormatCSV:
		return NewCSVFormatter(), nil
	case FormatJSONL, "":
		return NewJSONLFormatter(), nil
	case FormatParquet:
		return NewParquetFormatter(compression), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// UsesInternalCompression returns true if the format handles compression internally
func UsesInternalCompression(format string) bool {
	return format == FormatParquet
}
