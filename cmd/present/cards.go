package present

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Series colors shared with the charts
const (
	ColorA = "#3498db"
	ColorB = "#e74c3c"
)

var (
	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Underline(true).
			MarginTop(1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			Width(30)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	upStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ecc71"))
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
)

// card renders one labelled value with an optional detail line
func card(label, value, detail, borderColor string) string {
	lines := []string{labelStyle.Render(label), valueStyle.Render(value)}
	if detail != "" {
		lines = append(lines, detail)
	}
	return cardStyle.BorderForeground(lipgloss.Color(borderColor)).Render(strings.Join(lines, "\n"))
}

func yearDetail(year, count int) string {
	if count == 0 {
		return labelStyle.Render("N/A")
	}
	return labelStyle.Render("Year: " + strconv.Itoa(year))
}

func deltaDetail(delta float64) string {
	text := Delta(delta)
	switch {
	case delta > 0:
		return upStyle.Render("▲ " + text)
	case delta < 0:
		return downStyle.Render("▼ " + text)
	}
	return labelStyle.Render(text)
}

// CurrentValues renders the two current-value cards; B carries the delta
func CurrentValues(r *comparison.Result) string {
	a := card(fmt.Sprintf("%s (%d)", r.CountryA, r.LatestA.Year), Number(r.LatestA.Value), "", ColorA)
	b := card(fmt.Sprintf("%s (%d)", r.CountryB, r.LatestB.Year), Number(r.LatestB.Value), deltaDetail(r.Delta), ColorB)
	return lipgloss.JoinHorizontal(lipgloss.Top, a, " ", b)
}

// Statistics renders maximum, minimum and mean cards for both countries
func Statistics(r *comparison.Result) string {
	column := func(title string, pick func(s comparison.Stats) (string, string)) string {
		va, da := pick(r.StatsA)
		vb, db := pick(r.StatsB)
		return lipgloss.JoinVertical(lipgloss.Left,
			card(r.CountryA+" "+title, va, da, ColorA),
			card(r.CountryB+" "+title, vb, db, ColorB),
		)
	}

	maxCol := column("Maximum", func(s comparison.Stats) (string, string) {
		return Number(s.Max), yearDetail(s.MaxYear, s.Count)
	})
	minCol := column("Minimum", func(s comparison.Stats) (string, string) {
		return Number(s.Min), yearDetail(s.MinYear, s.Count)
	})
	meanCol := column("Mean", func(s comparison.Stats) (string, string) {
		return Number(s.Mean), ""
	})

	return lipgloss.JoinHorizontal(lipgloss.Top, maxCol, " ", minCol, " ", meanCol)
}

// RawData renders the combined rows as a table
func RawData(r *comparison.Result) string {
	rows := make([][]string, 0, len(r.Combined))
	for _, p := range r.Combined {
		rows = append(rows, []string{p.Entity, strconv.Itoa(p.Year), Number(p.Value)})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers("Entity", "Year", r.Column).
		Rows(rows...).
		String()
}

// Result renders the full comparison report. raw adds the combined table.
func Result(r *comparison.Result, raw bool) string {
	var b strings.Builder

	b.WriteString(headingStyle.Render(fmt.Sprintf("Comparing %s vs %s: %s", r.CountryA, r.CountryB, r.Metric)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Column: " + r.Column))
	b.WriteString("\n")

	b.WriteString(headingStyle.Render("Current Values"))
	b.WriteString("\n")
	b.WriteString(CurrentValues(r))
	b.WriteString("\n")

	b.WriteString(headingStyle.Render("Statistical Summary"))
	b.WriteString("\n")
	b.WriteString(Statistics(r))
	b.WriteString("\n")

	if raw {
		b.WriteString(headingStyle.Render("Raw Data"))
		b.WriteString("\n")
		b.WriteString(RawData(r))
		b.WriteString("\n")
	}

	return b.String()
}
