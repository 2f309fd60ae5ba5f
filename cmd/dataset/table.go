package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Reserved identifier columns of an Our World in Data style CSV
const (
	EntityColumn = "Entity"
	YearColumn   = "Year"
	CodeColumn   = "Code"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Row is one observation. Values is aligned with Table.Columns and holds
// NaN for missing or non-numeric cells.
type Row struct {
	Entity string
	Code   string
	Year   int
	Values []float64
}

// Value returns the cell for column index i, NaN when out of range.
func (r Row) Value(i int) float64 {
	if i < 0 || i >= len(r.Values) {
		return math.NaN()
	}
	return r.Values[i]
}

// Table is a parsed dataset. Tables handed out by a Fetcher are shared
// through the session cache and must be treated as read-only.
type Table struct {
	Columns []string
	Rows    []Row

	// Skipped counts rows dropped because their Year was blank or not integral
	Skipped int
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// IsReserved reports whether a column is an identifier rather than a value column.
func IsReserved(column string) bool {
	switch column {
	case EntityColumn, YearColumn, CodeColumn:
		return true
	}
	return false
}

// Entities returns the sorted distinct non-empty entity names.
func (t *Table) Entities() []string {
	if !t.HasColumn(EntityColumn) {
		return nil
	}

	seen := make(map[string]struct{})
	entities := make([]string, 0)
	for _, row := range t.Rows {
		if row.Entity == "" {
			continue
		}
		if _, ok := seen[row.Entity]; ok {
			continue
		}
		seen[row.Entity] = struct{}{}
		entities = append(entities, row.Entity)
	}
	sort.Strings(entities)
	return entities
}

// ParseCSV converts a CSV payload into a Table. A payload holding only a
// header yields an empty Table; a payload without a header is a ParseError.
// Rows whose Year is blank or not a whole number are skipped and counted in
// Table.Skipped.
func ParseCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are padded or truncated below

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Reason: "missing column header"}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Reason: "invalid column header", Err: err}
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}
	if len(columns) == 1 && columns[0] == "" {
		return nil, &ParseError{Line: 1, Reason: "empty column header"}
	}

	table := &Table{Columns: columns, Rows: make([]Row, 0)}
	entityIdx := table.ColumnIndex(EntityColumn)
	yearIdx := table.ColumnIndex(YearColumn)
	codeIdx := table.ColumnIndex(CodeColumn)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: "invalid record", Err: err}
		}
		row := Row{Values: make([]float64, len(columns))}
		skip := false
		for i := range columns {
			cell := ""
			if i < len(record) {
				cell = strings.TrimSpace(record[i])
			}
			row.Values[i] = parseNumber(cell)

			switch i {
			case entityIdx:
				row.Entity = cell
			case codeIdx:
				row.Code = cell
			case yearIdx:
				year, ok := parseYear(cell)
				if !ok {
					skip = true
				}
				row.Year = year
			}
		}

		if skip {
			table.Skipped++
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// parseYear accepts integers and integral floats such as "2000.0"
func parseYear(cell string) (int, bool) {
	if year, err := strconv.Atoi(cell); err == nil {
		return year, true
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// parseNumber returns NaN for empty or non-numeric cells
func parseNumber(cell string) float64 {
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
