// Package catalog loads the metric catalog: a table mapping metric names to
// the URL of the CSV dataset that carries them.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for catalog loading and lookup
var (
	ErrCatalogUnavailable     = errors.New("catalog unavailable")
	ErrCatalogFormat          = errors.New("catalog format error")
	ErrInvalidMetricSelection = errors.New("invalid metric selection")
)

// Default header names of the catalog spreadsheet
const (
	DefaultSheet        = "Sheet1"
	DefaultMetricColumn = "metric"
	DefaultLinkColumn   = "data link full column names"
)

// Entry maps one metric to the dataset that carries it
type Entry struct {
	Metric    string `json:"metric"`
	SourceURL string `json:"sourceUrl"`
}

// Catalog is an immutable, ordered set of entries, unique by metric.
type Catalog struct {
	entries []Entry
	index   map[string]int
	dropped int
	source  string
}

// New builds a catalog from raw entries. Entries with an empty link or an
// empty metric are dropped; for duplicate metrics the first entry wins.
func New(raw []Entry, source string) *Catalog {
	c := &Catalog{
		entries: make([]Entry, 0, len(raw)),
		index:   make(map[string]int, len(raw)),
		source:  source,
	}

	for _, e := range raw {
		e.Metric = strings.TrimSpace(e.Metric)
		e.SourceURL = strings.TrimSpace(e.SourceURL)
		if e.SourceURL == "" || e.Metric == "" {
			c.dropped++
			continue
		}
		if _, dup := c.index[e.Metric]; dup {
			c.dropped++
			continue
		}
		c.index[e.Metric] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	return c
}

// Entries returns the entries in catalog order
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Metrics returns the selectable metric names in catalog order
func (c *Catalog) Metrics() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Metric
	}
	return out
}

// Lookup returns the entry for metric
func (c *Catalog) Lookup(metric string) (Entry, error) {
	i, ok := c.index[metric]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidMetricSelection, metric)
	}
	return c.entries[i], nil
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Dropped returns how many source rows were discarded while building
func (c *Catalog) Dropped() int {
	return c.dropped
}

// Source describes where the catalog was loaded from
func (c *Catalog) Source() string {
	return c.source
}

// FromRows builds a catalog from a header row followed by data rows, as
// read from a spreadsheet or CSV file.
func FromRows(rows [][]string, metricColumn, linkColumn, source string) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", ErrCatalogFormat, source)
	}

	metricIdx, linkIdx, err := locateColumns(rows[0], metricColumn, linkColumn)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, source)
	}

	raw := make([]Entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw = append(raw, Entry{
			Metric:    cell(row, metricIdx),
			SourceURL: cell(row, linkIdx),
		})
	}

	return New(raw, source), nil
}

// locateColumns finds the metric and link columns in a header row. Names
// match case-insensitively; the link column falls back to the first header
// mentioning "link".
func locateColumns(header []string, metricColumn, linkColumn string) (int, int, error) {
	if metricColumn == "" {
		metricColumn = DefaultMetricColumn
	}
	if linkColumn == "" {
		linkColumn = DefaultLinkColumn
	}

	metricIdx, linkIdx, linkFallback := -1, -1, -1
	for i, h := range header {
		name := strings.TrimSpace(h)
		switch {
		case metricIdx < 0 && strings.EqualFold(name, metricColumn):
			metricIdx = i
		case linkIdx < 0 && strings.EqualFold(name, linkColumn):
			linkIdx = i
		case linkFallback < 0 && strings.Contains(strings.ToLower(name), "link"):
			linkFallback = i
		}
	}
	if linkIdx < 0 {
		linkIdx = linkFallback
	}

	if metricIdx < 0 {
		return -1, -1, fmt.Errorf("%w: missing %q column", ErrCatalogFormat, metricColumn)
	}
	if linkIdx < 0 {
		return -1, -1, fmt.Errorf("%w: missing %q column", ErrCatalogFormat, linkColumn)
	}
	return metricIdx, linkIdx, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
