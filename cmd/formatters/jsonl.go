package formatters

import (
	"bytes"
	"encoding/json"

	"github.com/airframesio/country-compare/cmd/comparison"
)

// JSONLFormatter writes one JSON object per combined row
type JSONLFormatter struct{}

// NewJSONLFormatter creates a new JSONL formatter
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

type jsonlRecord struct {
	Entity string  `json:"entity"`
	Year   int     `json:"year"`
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

// Format converts the combined rows to JSONL
func (f *JSONLFormatter) Format(res *comparison.Result) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)

	for _, p := range res.Combined {
		// Encode appends the newline
		if err := encoder.Encode(jsonlRecord{
			Entity: p.Entity,
			Year:   p.Year,
			Column: res.Column,
			Value:  p.Value,
		}); err != nil {
			return nil, err
		}
	}

	return buffer.Bytes(), nil
}

// Extension returns the file extension for JSONL files
func (f *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// MIMEType returns the MIME type for JSONL
func (f *JSONLFormatter) MIMEType() string {
	return "application/x-ndjson"
}
