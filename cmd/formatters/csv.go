package formatters

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/airframesio/country-compare/cmd/dataset"
)

// CSVFormatter writes Entity,Year,<column> rows
type CSVFormatter struct{}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

// Format converts the combined rows to CSV with the dataset's own header names
func (f *CSVFormatter) Format(res *comparison.Result) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	if err := writer.Write([]string{dataset.EntityColumn, dataset.YearColumn, res.Column}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range res.Combined {
		record := []string{
			p.Entity,
			strconv.Itoa(p.Year),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buffer.Bytes(), nil
}

// Extension returns the file extension for CSV files
func (f *CSVFormatter) Extension() string {
	return ".csv"
}

// MIMEType returns the MIME type for CSV
func (f *CSVFormatter) MIMEType() string {
	return "text/csv"
}
