package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/countries"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the metrics in the catalog",
	RunE:  runMetrics,
}

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List the countries available for comparison",
	Long: `Probes the catalog datasets in order and lists the entities of the first
one that has any. Falls back to a built-in list of 20 countries.`,
	RunE: runCountries,
}

func init() {
	metricsCmd.Flags().Bool("links", false, "show the dataset URL of each metric")
}

// renderCatalog lists metrics in catalog order, optionally with their URLs
func renderCatalog(cat *catalog.Catalog, links bool) string {
	headers := []string{"#", "Metric"}
	if links {
		headers = append(headers, "Dataset")
	}

	rows := make([][]string, 0, cat.Len())
	for i, e := range cat.Entries() {
		row := []string{strconv.Itoa(i + 1), e.Metric}
		if links {
			row = append(row, e.SourceURL)
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))).
		Headers(headers...).
		Rows(rows...).
		String()
}

// renderCountries prints the resolved list in columns
func renderCountries(res countries.Resolution) string {
	const perRow = 4

	rows := make([][]string, 0, len(res.Countries)/perRow+1)
	for i := 0; i < len(res.Countries); i += perRow {
		end := i + perRow
		if end > len(res.Countries) {
			end = len(res.Countries)
		}
		row := make([]string, perRow)
		copy(row, res.Countries[i:end])
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.HiddenBorder()).
		Rows(rows...).
		String()
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	links, _ := cmd.Flags().GetBool("links")

	config, err := prepare(false)
	if err != nil {
		return err
	}
	ctx, stop := commandContext()
	defer stop()

	cat, err := newSession(config, logger).Catalog(ctx)
	if err != nil {
		return describeError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("📚 %s: %d metrics", cat.Source(), cat.Len())))
	if cat.Dropped() > 0 {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("⚠️  %d catalog rows skipped (missing metric or link, or duplicate)", cat.Dropped())))
	}
	fmt.Fprintln(out, renderCatalog(cat, links))
	return nil
}

func runCountries(cmd *cobra.Command, _ []string) error {
	config, err := prepare(false)
	if err != nil {
		return err
	}
	ctx, stop := commandContext()
	defer stop()

	res, err := newSession(config, logger).Countries(ctx)
	if err != nil {
		return describeError(err)
	}

	out := cmd.OutOrStdout()
	if res.Fallback {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("⚠️  No catalog dataset listed countries after %d probes, using the built-in list", res.Probed)))
	} else {
		fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("🌍 %d countries from %s", len(res.Countries), res.Source)))
	}
	fmt.Fprintln(out, strings.TrimRight(renderCountries(res), "\n"))
	return nil
}
