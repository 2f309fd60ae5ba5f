package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/airframesio/country-compare/cmd/objectstore"
)

func validConfig() *Config {
	return &Config{
		LogFormat: "text",
		Catalog: CatalogConfig{
			Location: "owid_data.xlsx",
			Sheet:    "Sheet1",
		},
		Fetch: FetchConfig{
			Timeout: 10 * time.Second,
		},
		S3: S3Config{
			Region: "auto",
		},
		Serve: ServeConfig{Port: 8080},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		if err := validConfig().Validate(); err != nil {
			t.Fatalf("valid config should not return error: %v", err)
		}
	})

	t.Run("MissingCatalog", func(t *testing.T) {
		config := validConfig()
		config.Catalog.Location = "  "

		err := config.Validate()
		if !errors.Is(err, ErrCatalogSourceRequired) {
			t.Fatalf("expected ErrCatalogSourceRequired, got %v", err)
		}
	})

	t.Run("MissingCatalogInteractive", func(t *testing.T) {
		config := validConfig()
		config.Catalog.Location = ""
		config.Interactive = true

		if err := config.Validate(); err != nil {
			t.Fatalf("interactive mode should allow a missing catalog: %v", err)
		}
	})

	t.Run("InvalidS3CatalogURI", func(t *testing.T) {
		config := validConfig()
		config.Catalog.Location = "s3://bucket-only"

		err := config.Validate()
		if !errors.Is(err, objectstore.ErrInvalidURI) {
			t.Fatalf("expected ErrInvalidURI, got %v", err)
		}
	})

	t.Run("InvalidFetchTimeout", func(t *testing.T) {
		config := validConfig()
		config.Fetch.Timeout = 0

		err := config.Validate()
		if !errors.Is(err, ErrFetchTimeoutInvalid) {
			t.Fatalf("expected ErrFetchTimeoutInvalid, got %v", err)
		}
	})

	t.Run("NegativeMaxProbes", func(t *testing.T) {
		config := validConfig()
		config.MaxProbes = -1

		err := config.Validate()
		if !errors.Is(err, ErrMaxProbesInvalid) {
			t.Fatalf("expected ErrMaxProbesInvalid, got %v", err)
		}
	})

	t.Run("InvalidLogFormat", func(t *testing.T) {
		config := validConfig()
		config.LogFormat = "xml"

		err := config.Validate()
		if !errors.Is(err, ErrLogFormatInvalid) {
			t.Fatalf("expected ErrLogFormatInvalid, got %v", err)
		}
	})

	t.Run("IncompleteS3Credentials", func(t *testing.T) {
		config := validConfig()
		config.S3.AccessKey = "access123"

		err := config.Validate()
		if !errors.Is(err, ErrS3CredentialsIncomplete) {
			t.Fatalf("expected ErrS3CredentialsIncomplete, got %v", err)
		}
	})

	t.Run("InvalidServePort", func(t *testing.T) {
		config := validConfig()
		config.Serve.Port = 70000

		err := config.Validate()
		if !errors.Is(err, ErrServePortInvalid) {
			t.Fatalf("expected ErrServePortInvalid, got %v", err)
		}
	})
}

func TestCatalogTableValidation(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		order   string
		wantErr error
	}{
		{name: "plain table", table: "metric_catalog"},
		{name: "schema qualified", table: "owid.metric_catalog"},
		{name: "order column", table: "metric_catalog", order: "position"},
		{name: "injection attempt", table: "metric_catalog; DROP TABLE users", wantErr: ErrCatalogTableInvalid},
		{name: "too many parts", table: "a.b.c", wantErr: ErrCatalogTableInvalid},
		{name: "empty part", table: "owid.", wantErr: ErrCatalogTableInvalid},
		{name: "bad order column", table: "metric_catalog", order: "1position", wantErr: ErrCatalogOrderInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.Catalog.Location = "postgres://owid@localhost/catalog"
			config.Catalog.Table = tt.table
			config.Catalog.OrderColumn = tt.order

			err := config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExportValidation(t *testing.T) {
	tests := []struct {
		name    string
		export  ExportConfig
		bucket  string
		wantErr error
	}{
		{
			name:   "valid jsonl zstd",
			export: ExportConfig{Path: "out", Format: "jsonl", Compression: "zstd", CompressionLevel: 3},
		},
		{
			name:   "valid parquet none",
			export: ExportConfig{Path: "out", Format: "parquet", Compression: "none"},
		},
		{
			name:    "invalid format",
			export:  ExportConfig{Path: "out", Format: "xml", Compression: "zstd", CompressionLevel: 3},
			wantErr: ErrOutputFormatInvalid,
		},
		{
			name:    "invalid compression",
			export:  ExportConfig{Path: "out", Format: "csv", Compression: "brotli", CompressionLevel: 3},
			wantErr: ErrCompressionInvalid,
		},
		{
			name:    "zstd level too high",
			export:  ExportConfig{Path: "out", Format: "csv", Compression: "zstd", CompressionLevel: 23},
			wantErr: ErrCompressionLevelInvalid,
		},
		{
			name:    "gzip level too high",
			export:  ExportConfig{Path: "out", Format: "csv", Compression: "gzip", CompressionLevel: 10},
			wantErr: ErrCompressionLevelInvalid,
		},
		{
			name:    "s3 export without bucket",
			export:  ExportConfig{Path: "out", Format: "csv", Compression: "gzip", CompressionLevel: 6, ToS3: true},
			wantErr: ErrS3BucketRequired,
		},
		{
			name:   "s3 export with bucket",
			export: ExportConfig{Path: "out", Format: "csv", Compression: "gzip", CompressionLevel: 6, ToS3: true},
			bucket: "exports",
		},
		{
			name:   "no export path skips checks",
			export: ExportConfig{Format: "xml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.Export = tt.export
			config.S3.Bucket = tt.bucket

			err := config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIsValidRegion(t *testing.T) {
	tests := []struct {
		region string
		valid  bool
	}{
		{"us-east-1", true},
		{"eu_west_2", true},
		{"", false},
		{"us east", false},
		{"region/../../etc", false},
	}
	for _, tt := range tests {
		if got := isValidRegion(tt.region); got != tt.valid {
			t.Errorf("isValidRegion(%q) = %v, want %v", tt.region, got, tt.valid)
		}
	}
}

func TestLoaderOptions(t *testing.T) {
	config := validConfig()
	config.Catalog.MetricColumn = "indicator"
	config.S3.Bucket = "catalogs"

	opts := config.LoaderOptions()
	if opts.MetricColumn != "indicator" || opts.Sheet != "Sheet1" {
		t.Errorf("unexpected catalog options %+v", opts)
	}
	if opts.S3.Bucket != "catalogs" {
		t.Errorf("S3 config not carried over: %+v", opts.S3)
	}
}
