package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/airframesio/country-compare/cmd/compressors"
	"github.com/airframesio/country-compare/cmd/formatters"
	"github.com/airframesio/country-compare/cmd/objectstore"
)

// encodeExport formats the combined rows and compresses them. It returns
// the payload, the file extension and the content type.
func encodeExport(res *comparison.Result, export ExportConfig) ([]byte, string, string, error) {
	formatter, err := formatters.GetFormatter(export.Format, export.Compression)
	if err != nil {
		return nil, "", "", err
	}

	data, err := formatter.Format(res)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to format rows: %w", err)
	}

	ext := formatter.Extension()
	if formatters.UsesInternalCompression(export.Format) {
		return data, ext, formatter.MIMEType(), nil
	}

	compressor, err := compressors.GetCompressor(export.Compression)
	if err != nil {
		return nil, "", "", err
	}
	level := export.CompressionLevel
	if level <= 0 {
		level = compressor.DefaultLevel()
	}
	compressed, err := compressor.Compress(data, level)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to compress export: %w", err)
	}

	contentType := formatter.MIMEType()
	if compressor.Name() != compressors.None {
		contentType = "application/octet-stream"
	}
	return compressed, ext + compressor.Extension(), contentType, nil
}

// exportPath appends ext unless path already ends with it
func exportPath(path, ext string) string {
	if strings.HasSuffix(path, ext) {
		return path
	}
	return path + ext
}

// exportResult writes the combined rows to a local file or to S3 and
// returns where they went. The path may use PathTemplate placeholders.
func exportResult(ctx context.Context, config *Config, res *comparison.Result) (string, error) {
	data, ext, contentType, err := encodeExport(res, config.Export)
	if err != nil {
		return "", err
	}
	dest := exportPath(NewPathTemplate(config.Export.Path).Generate(res, time.Now()), ext)

	if config.Export.ToS3 {
		client, err := objectstore.NewClient(config.S3.objectstore())
		if err != nil {
			return "", err
		}
		loc, err := client.Upload(ctx, filepath.ToSlash(dest), data, contentType)
		if err != nil {
			return "", err
		}
		return loc.String(), nil
	}

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return dest, nil
}
