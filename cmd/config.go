package cmd

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/objectstore"
)

// Static errors for configuration validation
var (
	ErrCatalogSourceRequired   = errors.New("catalog location is required (path, s3://bucket/key or postgres:// DSN)")
	ErrCatalogTableInvalid     = errors.New("catalog table is invalid: must be an optionally schema-qualified identifier")
	ErrCatalogOrderInvalid     = errors.New("catalog order column is invalid: must start with a letter or underscore, and contain only letters, numbers, and underscores")
	ErrFetchTimeoutInvalid     = errors.New("fetch timeout must be greater than zero")
	ErrMaxProbesInvalid        = errors.New("countries max probes must be >= 0")
	ErrLogFormatInvalid        = errors.New("log format must be one of: text, logfmt, json")
	ErrS3BucketRequired        = errors.New("S3 bucket is required")
	ErrS3CredentialsIncomplete = errors.New("S3 access key and secret key must be set together")
	ErrS3RegionInvalid         = errors.New("S3 region contains invalid characters or is too long")
	ErrOutputFormatInvalid     = errors.New("export format must be one of: jsonl, csv, parquet")
	ErrCompressionInvalid      = errors.New("compression must be one of: zstd, lz4, gzip, none")
	ErrCompressionLevelInvalid = errors.New("compression level must be between 1 and 22 (zstd), 1-9 (lz4/gzip)")
	ErrServePortInvalid        = errors.New("serve port must be between 1 and 65535")
)

const regionAuto = "auto"

type Config struct {
	Debug     bool
	LogFormat string
	// Interactive front ends (pick, serve) can ask for a catalog upload,
	// so they may start without a catalog location.
	Interactive bool
	Catalog     CatalogConfig
	Fetch       FetchConfig
	MaxProbes   int // countries.max_probes, 0 probes every catalog entry
	S3          S3Config
	Export      ExportConfig
	ChartDir    string
	Raw         bool
	Serve       ServeConfig
}

type CatalogConfig struct {
	Location     string
	Sheet        string
	MetricColumn string
	LinkColumn   string
	Table        string
	OrderColumn  string
}

type FetchConfig struct {
	Timeout   time.Duration
	UserAgent string
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

type ExportConfig struct {
	Path             string
	Format           string
	Compression      string
	CompressionLevel int
	ToS3             bool
}

type ServeConfig struct {
	Port  int
	Watch bool
}

// validPostgreSQLIdentifier checks if a string is a valid PostgreSQL identifier
var validPostgreSQLIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var validRegion = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// isValidTableName accepts table or schema.table, each part at most 63 characters
func isValidTableName(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 63 || !validPostgreSQLIdentifier.MatchString(part) {
			return false
		}
	}
	return true
}

// isValidRegion validates that an S3 region is reasonable
func isValidRegion(region string) bool {
	if region == "" || len(region) > 50 {
		return false
	}
	return validRegion.MatchString(region)
}

// isValidOutputFormat validates the export format
func isValidOutputFormat(format string) bool {
	validFormats := map[string]bool{
		"jsonl":   true,
		"csv":     true,
		"parquet": true,
	}
	return validFormats[format]
}

// isValidCompression validates the compression type
func isValidCompression(compression string) bool {
	validCompressions := map[string]bool{
		"zstd": true,
		"lz4":  true,
		"gzip": true,
		"none": true,
	}
	return validCompressions[compression]
}

// isValidCompressionLevel validates compression level based on compression type
func isValidCompressionLevel(compression string, level int) bool {
	switch compression {
	case "zstd":
		return level >= 1 && level <= 22
	case "lz4", "gzip":
		return level >= 1 && level <= 9
	case "none":
		return true // level is ignored
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "logfmt", "json":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	if c.LogFormat != "" && !isValidLogFormat(c.LogFormat) {
		return fmt.Errorf("%w: '%s'", ErrLogFormatInvalid, c.LogFormat)
	}

	// Validate catalog source
	if strings.TrimSpace(c.Catalog.Location) == "" && !c.Interactive {
		return ErrCatalogSourceRequired
	}
	if objectstore.IsURI(c.Catalog.Location) {
		if _, err := objectstore.ParseURI(c.Catalog.Location); err != nil {
			return err
		}
	}
	if c.Catalog.Table != "" && !isValidTableName(c.Catalog.Table) {
		return fmt.Errorf("%w: '%s'", ErrCatalogTableInvalid, c.Catalog.Table)
	}
	if c.Catalog.OrderColumn != "" && !validPostgreSQLIdentifier.MatchString(c.Catalog.OrderColumn) {
		return fmt.Errorf("%w: '%s'", ErrCatalogOrderInvalid, c.Catalog.OrderColumn)
	}

	// Validate fetch settings
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("%w, got %s", ErrFetchTimeoutInvalid, c.Fetch.Timeout)
	}
	if c.MaxProbes < 0 {
		return fmt.Errorf("%w, got %d", ErrMaxProbesInvalid, c.MaxProbes)
	}

	// Validate S3 settings (used by s3:// catalogs and exports)
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return ErrS3CredentialsIncomplete
	}
	if c.S3.Region != "" && c.S3.Region != regionAuto && !isValidRegion(c.S3.Region) {
		return fmt.Errorf("%w: %s", ErrS3RegionInvalid, c.S3.Region)
	}

	// Validate export settings
	if c.Export.Path != "" {
		if !isValidOutputFormat(c.Export.Format) {
			return fmt.Errorf("%w: '%s'", ErrOutputFormatInvalid, c.Export.Format)
		}
		if !isValidCompression(c.Export.Compression) {
			return fmt.Errorf("%w: '%s'", ErrCompressionInvalid, c.Export.Compression)
		}
		if !isValidCompressionLevel(c.Export.Compression, c.Export.CompressionLevel) {
			return fmt.Errorf("%w for compression %s: got %d", ErrCompressionLevelInvalid, c.Export.Compression, c.Export.CompressionLevel)
		}
		if c.Export.ToS3 && c.S3.Bucket == "" {
			return ErrS3BucketRequired
		}
	}

	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("%w, got %d", ErrServePortInvalid, c.Serve.Port)
	}

	return nil
}

// LoaderOptions maps the catalog settings onto catalog.Options
func (c *Config) LoaderOptions() catalog.Options {
	return catalog.Options{
		Sheet:        c.Catalog.Sheet,
		MetricColumn: c.Catalog.MetricColumn,
		LinkColumn:   c.Catalog.LinkColumn,
		Table:        c.Catalog.Table,
		OrderColumn:  c.Catalog.OrderColumn,
		S3:           c.S3.objectstore(),
	}
}

func (s S3Config) objectstore() objectstore.Config {
	return objectstore.Config{
		Endpoint:  s.Endpoint,
		Bucket:    s.Bucket,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Region:    s.Region,
	}
}
