package formatters

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"

	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/parquet-go/parquet-go"
)

func sampleResult() *comparison.Result {
	return &comparison.Result{
		Metric:   "GDP per capita",
		Column:   "GDP per capita (constant 2015 US$)",
		CountryA: "Wakanda",
		CountryB: "Genovia",
		Combined: []comparison.Point{
			{Entity: "Genovia", Year: 2005, Value: 50},
			{Entity: "Genovia", Year: 2015, Value: 80.5},
			{Entity: "Wakanda", Year: 2000, Value: 100},
		},
	}
}

func TestGetFormatter(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"csv", ".csv"},
		{"jsonl", ".jsonl"},
		{"", ".jsonl"},
		{"parquet", ".parquet"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := GetFormatter(tt.format, "")
			if err != nil {
				t.Fatal(err)
			}
			if f.Extension() != tt.ext {
				t.Errorf("Extension() = %s, want %s", f.Extension(), tt.ext)
			}
			if f.MIMEType() == "" {
				t.Error("MIMEType() should not be empty")
			}
		})
	}

	if _, err := GetFormatter("xml", ""); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if !UsesInternalCompression(FormatParquet) || UsesInternalCompression(FormatCSV) {
		t.Error("only parquet compresses internally")
	}
}

func TestCSVFormatter(t *testing.T) {
	data, err := NewCSVFormatter().Format(sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(records))
	}
	if records[0][2] != "GDP per capita (constant 2015 US$)" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[2][0] != "Genovia" || records[2][1] != "2015" || records[2][2] != "80.5" {
		t.Errorf("unexpected row %v", records[2])
	}
}

func TestJSONLFormatter(t *testing.T) {
	data, err := NewJSONLFormatter().Format(sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var lines []jsonlRecord
	for scanner.Scan() {
		var rec jsonlRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, rec)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[2].Entity != "Wakanda" || lines[2].Year != 2000 || lines[2].Value != 100 {
		t.Errorf("unexpected record %+v", lines[2])
	}
	if lines[0].Column != "GDP per capita (constant 2015 US$)" {
		t.Errorf("unexpected column %q", lines[0].Column)
	}
}

func TestParquetFormatter(t *testing.T) {
	for _, compression := range []string{"snappy", "zstd", "gzip", "lz4", "none"} {
		t.Run(compression, func(t *testing.T) {
			data, err := NewParquetFormatter(compression).Format(sampleResult())
			if err != nil {
				t.Fatal(err)
			}

			rows, err := parquet.Read[ParquetRow](bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatalf("failed to read parquet output: %v", err)
			}
			if len(rows) != 3 {
				t.Fatalf("expected 3 rows, got %d", len(rows))
			}
			if rows[1] != (ParquetRow{Entity: "Genovia", Year: 2015, Value: 80.5}) {
				t.Errorf("unexpected row %+v", rows[1])
			}

			file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatal(err)
			}
			if v, ok := file.Lookup(ColumnMetadataKey); !ok || v != "GDP per capita (constant 2015 US$)" {
				t.Errorf("column metadata = %q, %v", v, ok)
			}
		})
	}
}
