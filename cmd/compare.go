package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/airframesio/country-compare/cmd/charts"
	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/airframesio/country-compare/cmd/present"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var compareCmd = &cobra.Command{
	Use:   "compare --metric METRIC --a COUNTRY --b COUNTRY",
	Short: "Compare two countries on one metric",
	Long: `Fetch the dataset behind a catalog metric and compare two countries:
current values with their difference, maximum/minimum/mean with the years they
occurred, and optionally the raw rows, PNG charts and an export file.`,
	Example: `  country-compare compare --catalog owid_data.xlsx --metric "GDP per capita" --a Kenya --b Nigeria
  country-compare compare --metric "Life expectancy" --a Japan --b Brazil --charts ./charts --raw
  country-compare compare --metric "CO2 emissions" --a China --b India --export co2 --export-format parquet`,
	RunE: runCompare,
}

func init() {
	flags := compareCmd.Flags()
	flags.String("metric", "", "metric name from the catalog (required)")
	flags.String("a", "", "first country (required)")
	flags.String("b", "", "second country (required)")
	flags.Bool("raw", false, "print the combined raw rows")
	flags.String("charts", "", "directory to write bar.png and line.png into")
	flags.String("export", "", "write the combined rows to this path (extension added when missing)")
	flags.String("export-format", "csv", "export format: jsonl, csv, parquet")
	flags.String("compression", "none", "export compression: zstd, lz4, gzip, none")
	flags.Int("compression-level", 3, "compression level (zstd: 1-22, lz4/gzip: 1-9)")
	flags.Bool("export-s3", false, "upload the export to the S3 bucket instead of writing a local file")

	_ = viper.BindPFlag("raw", flags.Lookup("raw"))
	_ = viper.BindPFlag("charts", flags.Lookup("charts"))
	_ = viper.BindPFlag("export.path", flags.Lookup("export"))
	_ = viper.BindPFlag("export.format", flags.Lookup("export-format"))
	_ = viper.BindPFlag("export.compression", flags.Lookup("compression"))
	_ = viper.BindPFlag("export.compression_level", flags.Lookup("compression-level"))
	_ = viper.BindPFlag("export.s3", flags.Lookup("export-s3"))
}

func runCompare(cmd *cobra.Command, _ []string) error {
	metric, _ := cmd.Flags().GetString("metric")
	countryA, _ := cmd.Flags().GetString("a")
	countryB, _ := cmd.Flags().GetString("b")
	if metric == "" || countryA == "" || countryB == "" {
		return fmt.Errorf("--metric, --a and --b are required")
	}

	config, err := prepare(false)
	if err != nil {
		return err
	}

	ctx, stop := commandContext()
	defer stop()

	logger.Debug(fmt.Sprintf("🚀 Country Compare v%s", Version))
	startVersionCheck(ctx, config.Debug)

	session := newSession(config, logger)

	start := time.Now()
	res, err := session.Compare(ctx, metric, countryA, countryB)
	if err != nil {
		return describeError(err)
	}
	logger.Debug(fmt.Sprintf("Comparison finished in %v", time.Since(start).Round(time.Millisecond)))

	fmt.Fprintln(cmd.OutOrStdout(), present.Result(res, config.Raw))

	if config.ChartDir != "" {
		if err := writeCharts(res, config.ChartDir); err != nil {
			return err
		}
	}

	if config.Export.Path != "" {
		dest, err := exportResult(ctx, config, res)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		logger.Info(fmt.Sprintf("💾 Exported %s rows to %s", present.Count(len(res.Combined)), dest))
	}

	logger.Debug("✅ Comparison completed successfully!")
	return nil
}

// writeCharts renders bar.png and line.png into dir
func writeCharts(res *comparison.Result, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}

	var bar bytes.Buffer
	if err := charts.WriteBar(res, &bar); err != nil {
		return err
	}
	barPath := filepath.Join(dir, "bar.png")
	if err := os.WriteFile(barPath, bar.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", barPath, err)
	}
	logger.Info(fmt.Sprintf("📊 Wrote %s", barPath))

	var line bytes.Buffer
	if err := charts.WriteLine(res, &line); err != nil {
		// A missing series only skips the trend chart
		logger.Warn(fmt.Sprintf("⚠️  Skipping line chart: %v", err))
		return nil
	}
	linePath := filepath.Join(dir, "line.png")
	if err := os.WriteFile(linePath, line.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", linePath, err)
	}
	logger.Info(fmt.Sprintf("📈 Wrote %s", linePath))
	return nil
}
