// Package comparison aligns two countries' series of one metric and
// computes their current values and summary statistics.
package comparison

import (
	"math"
	"sort"
	"strings"

	"github.com/airframesio/country-compare/cmd/dataset"
)

// Point is one non-missing observation
type Point struct {
	Entity string  `json:"entity"`
	Year   int     `json:"year"`
	Value  float64 `json:"value"`
}

// Latest is a country's value at its most recent year
type Latest struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Stats summarizes the non-missing values of one country
type Stats struct {
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Mean    float64 `json:"mean"`
	MaxYear int     `json:"maxYear"`
	MinYear int     `json:"minYear"`
	Count   int     `json:"count"`
}

// Result is a complete two-country comparison
type Result struct {
	Metric   string  `json:"metric"`
	Column   string  `json:"column"`
	CountryA string  `json:"countryA"`
	CountryB string  `json:"countryB"`
	LatestA  Latest  `json:"latestA"`
	LatestB  Latest  `json:"latestB"`
	Delta    float64 `json:"delta"`
	StatsA   Stats   `json:"statsA"`
	StatsB   Stats   `json:"statsB"`
	Combined []Point `json:"combined"`
}

// Compare builds the comparison of countryA and countryB for metric.
// The table is only read.
func Compare(table *dataset.Table, countryA, countryB, metric string) (*Result, error) {
	for _, required := range []string{dataset.EntityColumn, dataset.YearColumn} {
		if !table.HasColumn(required) {
			return nil, &ColumnNotFoundError{Metric: metric, Column: required}
		}
	}

	col, err := ResolveColumn(table.Columns, metric)
	if err != nil {
		return nil, err
	}

	rowsA := filter(table, countryA)
	if len(rowsA) == 0 {
		return nil, &NoDataError{Which: "A", Country: countryA}
	}
	rowsB := filter(table, countryB)
	if len(rowsB) == 0 {
		return nil, &NoDataError{Which: "B", Country: countryB}
	}

	latestA, err := latest(rowsA, col, countryA)
	if err != nil {
		return nil, err
	}
	latestB, err := latest(rowsB, col, countryB)
	if err != nil {
		return nil, err
	}

	return &Result{
		Metric:   metric,
		Column:   table.Columns[col],
		CountryA: countryA,
		CountryB: countryB,
		LatestA:  latestA,
		LatestB:  latestB,
		Delta:    latestB.Value - latestA.Value,
		StatsA:   summarize(rowsA, col),
		StatsB:   summarize(rowsB, col),
		Combined: combine(rowsA, rowsB, col),
	}, nil
}

// ResolveColumn picks the value column for metric: the first non-reserved
// column containing metric case-insensitively, else the first non-reserved
// column.
func ResolveColumn(columns []string, metric string) (int, error) {
	needle := strings.ToLower(strings.TrimSpace(metric))
	fallback := -1
	for i, name := range columns {
		if dataset.IsReserved(name) {
			continue
		}
		if needle != "" && strings.Contains(strings.ToLower(name), needle) {
			return i, nil
		}
		if fallback < 0 {
			fallback = i
		}
	}
	if fallback < 0 {
		return -1, &ColumnNotFoundError{Metric: metric}
	}
	return fallback, nil
}

func filter(table *dataset.Table, country string) []dataset.Row {
	rows := make([]dataset.Row, 0)
	for _, row := range table.Rows {
		if row.Entity == country {
			rows = append(rows, row)
		}
	}
	return rows
}

// latest takes the value at the maximum year; the first row wins on ties
func latest(rows []dataset.Row, col int, country string) (Latest, error) {
	best := rows[0]
	for _, row := range rows[1:] {
		if row.Year > best.Year {
			best = row
		}
	}
	v := best.Value(col)
	if math.IsNaN(v) {
		return Latest{}, &MissingValueError{Country: country, Year: best.Year}
	}
	return Latest{Year: best.Year, Value: v}, nil
}

func summarize(rows []dataset.Row, col int) Stats {
	var s Stats
	sum := 0.0
	for _, row := range rows {
		v := row.Value(col)
		if math.IsNaN(v) {
			continue
		}
		if s.Count == 0 || v > s.Max {
			s.Max, s.MaxYear = v, row.Year
		}
		if s.Count == 0 || v < s.Min {
			s.Min, s.MinYear = v, row.Year
		}
		sum += v
		s.Count++
	}
	if s.Count == 0 {
		return Stats{Max: math.NaN(), Min: math.NaN(), Mean: math.NaN()}
	}
	s.Mean = sum / float64(s.Count)
	return s
}

func combine(rowsA, rowsB []dataset.Row, col int) []Point {
	points := make([]Point, 0, len(rowsA)+len(rowsB))
	for _, rows := range [][]dataset.Row{rowsA, rowsB} {
		for _, row := range rows {
			v := row.Value(col)
			if math.IsNaN(v) {
				continue
			}
			points = append(points, Point{Entity: row.Entity, Year: row.Year, Value: v})
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Entity != points[j].Entity {
			return points[i].Entity < points[j].Entity
		}
		return points[i].Year < points[j].Year
	})
	return points
}

// Series returns the combined points of one entity in year order
func (r *Result) Series(entity string) []Point {
	out := make([]Point, 0)
	for _, p := range r.Combined {
		if p.Entity == entity {
			out = append(out, p)
		}
	}
	return out
}

// YRange returns axis limits covering both countries, padded by a tenth of
// the span on each side.
func (r *Result) YRange() (float64, float64) {
	lo := math.Min(r.StatsA.Min, r.StatsB.Min)
	hi := math.Max(r.StatsA.Max, r.StatsB.Max)
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.1, 1)
	}
	return lo - pad, hi + pad
}
