package formatters

import (
	"bytes"
	"fmt"

	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/parquet-go/parquet-go"
)

// ColumnMetadataKey holds the dataset column name in the parquet footer
const ColumnMetadataKey = "country_compare.column"

// ParquetRow is the parquet schema of an exported comparison
type ParquetRow struct {
	Entity string  `parquet:"entity"`
	Year   int32   `parquet:"year"`
	Value  float64 `parquet:"value"`
}

// ParquetFormatter handles Parquet format output
type ParquetFormatter struct {
	compression string
}

// NewParquetFormatter creates a Parquet formatter. An empty compression
// selects snappy.
func NewParquetFormatter(compression string) *ParquetFormatter {
	if compression == "" {
		compression = "snappy"
	}
	return &ParquetFormatter{compression: compression}
}

func (f *ParquetFormatter) codec() parquet.WriterOption {
	switch f.compression {
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "lz4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Format converts the combined rows to a single parquet file
func (f *ParquetFormatter) Format(res *comparison.Result) ([]byte, error) {
	var buffer bytes.Buffer

	writer := parquet.NewGenericWriter[ParquetRow](&buffer,
		f.codec(),
		parquet.KeyValueMetadata(ColumnMetadataKey, res.Column),
		parquet.KeyValueMetadata("country_compare.metric", res.Metric),
	)

	rows := make([]ParquetRow, len(res.Combined))
	for i, p := range res.Combined {
		rows[i] = ParquetRow{Entity: p.Entity, Year: int32(p.Year), Value: p.Value}
	}

	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to write parquet rows: %w", err)
	}

	// Close flushes the row group and footer
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return buffer.Bytes(), nil
}

// Extension returns the file extension for Parquet files
func (f *ParquetFormatter) Extension() string {
	return ".parquet"
}

// MIMEType returns the MIME type for Parquet
func (f *ParquetFormatter) MIMEType() string {
	return "application/vnd.apache.parquet"
}
