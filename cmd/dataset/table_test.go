package dataset

import (
	"errors"
	"math"
	"testing"
)

const owidSample = `Entity,Code,Year,GDP per capita
Wakanda,WAK,2000,100
Wakanda,WAK,2010,200
Wakanda,WAK,2020,150
Genovia,GEN,2005,50
Genovia,GEN,2015,
`

func TestParseCSV(t *testing.T) {
	table, err := ParseCSV([]byte(owidSample))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}

	if len(table.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(table.Columns))
	}
	if len(table.Rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(table.Rows))
	}

	gdp := table.ColumnIndex("GDP per capita")
	first := table.Rows[0]
	if first.Entity != "Wakanda" || first.Code != "WAK" || first.Year != 2000 {
		t.Errorf("unexpected first row: %+v", first)
	}
	if first.Value(gdp) != 100 {
		t.Errorf("expected value 100, got %v", first.Value(gdp))
	}
	if !math.IsNaN(table.Rows[4].Value(gdp)) {
		t.Errorf("empty cell should parse as NaN, got %v", table.Rows[4].Value(gdp))
	}
	if !math.IsNaN(first.Value(99)) {
		t.Error("out of range value should be NaN")
	}
}

func TestParseCSVHeaderOnly(t *testing.T) {
	table, err := ParseCSV([]byte("Entity,Code,Year,Population\n"))
	if err != nil {
		t.Fatalf("header-only payload should parse, got %v", err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("expected empty table, got %d rows", len(table.Rows))
	}
	if !table.HasColumn(EntityColumn) {
		t.Error("header should still be available")
	}
}

func TestParseCSVYearCells(t *testing.T) {
	payload := `Entity,Code,Year,GDP
Wakanda,WAK,2000,100
Wakanda,WAK,,200
Wakanda,WAK,2010.0,300
Wakanda,WAK,2015.5,400
Wakanda,WAK,twenty,500
Genovia,GEN, 2005 ,50
`
	table, err := ParseCSV([]byte(payload))
	if err != nil {
		t.Fatalf("bad year cells should not fail the dataset: %v", err)
	}

	var years []int
	for _, row := range table.Rows {
		years = append(years, row.Year)
	}
	if want := []int{2000, 2010, 2005}; len(years) != len(want) || years[0] != want[0] || years[1] != want[1] || years[2] != want[2] {
		t.Errorf("years = %v, want %v", years, want)
	}
	if table.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", table.Skipped)
	}
	if v := table.Rows[1].Value(table.ColumnIndex("GDP")); v != 300 {
		t.Errorf("row with integral float year kept wrong value %v", v)
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty body", payload: ""},
		{name: "blank header", payload: "\n"},
		{name: "unterminated quote", payload: "Entity,Year,Value\n\"Wakanda,2000,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV([]byte(tt.payload))
			if !errors.Is(err, ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestParseCSVLineNumber(t *testing.T) {
	_, err := ParseCSV([]byte("Entity,Year,Value\nWakanda,2000,1\nWakanda,later,2\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Line != 3 {
		t.Errorf("expected line 3, got %d", pe.Line)
	}
}

func TestParseCSVStripsBOMAndPadsRaggedRows(t *testing.T) {
	payload := append([]byte{0xef, 0xbb, 0xbf}, []byte("Entity,Year,Value\nWakanda,2000\n")...)
	table, err := ParseCSV(payload)
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if table.Columns[0] != EntityColumn {
		t.Errorf("BOM should be stripped, got column %q", table.Columns[0])
	}
	if !math.IsNaN(table.Rows[0].Value(2)) {
		t.Error("missing trailing cell should be NaN")
	}
}

func TestEntities(t *testing.T) {
	table, err := ParseCSV([]byte(owidSample))
	if err != nil {
		t.Fatal(err)
	}

	got := table.Entities()
	want := []string{"Genovia", "Wakanda"}
	if len(got) != len(want) {
		t.Fatalf("Entities() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entities()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	noEntity := &Table{Columns: []string{"Country", "Year"}}
	if noEntity.Entities() != nil {
		t.Error("table without Entity column should have no entities")
	}
}

func TestIsReserved(t *testing.T) {
	for _, col := range []string{"Entity", "Year", "Code"} {
		if !IsReserved(col) {
			t.Errorf("%s should be reserved", col)
		}
	}
	if IsReserved("GDP per capita") {
		t.Error("value column should not be reserved")
	}
}
