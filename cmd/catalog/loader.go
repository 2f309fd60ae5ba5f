package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/airframesio/country-compare/cmd/objectstore"
	"github.com/xuri/excelize/v2"
)

// Options controls how catalog sources are read
type Options struct {
	Sheet        string // spreadsheet sheet, falls back to the first sheet when absent
	MetricColumn string
	LinkColumn   string
	Table        string // PostgreSQL table for postgres:// locations
	OrderColumn  string // optional ORDER BY column for PostgreSQL catalogs
	S3           objectstore.Config
}

// Loader reads catalogs from local files, S3 objects, PostgreSQL tables or uploads.
type Loader struct {
	opts   Options
	logger *slog.Logger

	openDB   func(dsn string) (*sql.DB, error)
	download func(ctx context.Context, loc objectstore.Location) ([]byte, error)
}

// NewLoader creates a loader
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := &Loader{
		opts:   opts,
		logger: logger,
		openDB: func(dsn string) (*sql.DB, error) { return sql.Open("postgres", dsn) },
	}
	l.download = l.downloadS3
	return l
}

// Load reads the catalog at location. It fails with ErrCatalogUnavailable
// when no location is given or the location cannot be reached, in which case
// the caller should ask for an upload.
func (l *Loader) Load(ctx context.Context, location string) (*Catalog, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: no catalog location configured", ErrCatalogUnavailable)
	}

	switch {
	case isPostgresDSN(location):
		return l.loadPostgres(ctx, location)
	case objectstore.IsURI(location):
		return l.loadS3(ctx, location)
	default:
		return l.loadFile(location)
	}
}

// IsLocalFile reports whether location names a file on disk rather than an
// S3 object or a PostgreSQL database.
func IsLocalFile(location string) bool {
	location = strings.TrimSpace(location)
	return location != "" && !isPostgresDSN(location) && !objectstore.IsURI(location)
}

// LoadUpload parses an uploaded catalog. name selects the format by extension.
func (l *Loader) LoadUpload(r io.Reader, name string) (*Catalog, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no upload supplied", ErrCatalogUnavailable)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload: %w", ErrCatalogUnavailable, err)
	}
	return l.parse(data, name, "upload:"+filepath.Base(name))
}

func (l *Loader) loadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	l.logger.Debug(fmt.Sprintf("Read catalog file %s (%d bytes)", path, len(data)))
	return l.parse(data, path, path)
}

func (l *Loader) loadS3(ctx context.Context, uri string) (*Catalog, error) {
	loc, err := objectstore.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	data, err := l.download(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	l.logger.Debug(fmt.Sprintf("Downloaded catalog %s (%d bytes)", loc, len(data)))
	return l.parse(data, loc.Key, loc.String())
}

func (l *Loader) downloadS3(ctx context.Context, loc objectstore.Location) ([]byte, error) {
	client, err := objectstore.NewClient(l.opts.S3)
	if err != nil {
		return nil, err
	}
	return client.Download(ctx, loc)
}

// parse dispatches on the file extension of name
func (l *Loader) parse(data []byte, name, source string) (*Catalog, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		rows, err = readSpreadsheet(data, l.opts.Sheet)
	case ".csv":
		rows, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: unsupported catalog file type %q", ErrCatalogFormat, filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}

	c, err := FromRows(rows, l.opts.MetricColumn, l.opts.LinkColumn, source)
	if err != nil {
		return nil, err
	}
	l.logger.Debug(fmt.Sprintf("Catalog %s: %d metrics, %d rows dropped", source, c.Len(), c.Dropped()))
	return c, nil
}

// readSpreadsheet returns all rows of the requested sheet, or of the first
// sheet when the requested one does not exist.
func readSpreadsheet(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %w", ErrCatalogFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrCatalogFormat)
	}

	if sheet == "" {
		sheet = DefaultSheet
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %w", ErrCatalogFormat, sheet, err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xef, 0xbb, 0xbf})))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV catalog: %w", ErrCatalogFormat, err)
	}
	return rows, nil
}

// IsUnavailable reports whether err means the catalog could not be reached
// and an upload should be requested.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable)
}
