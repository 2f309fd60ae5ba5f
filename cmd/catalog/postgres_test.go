package catalog

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func TestLoadFromDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"metric", "data link full column names"}).
		AddRow("GDP per capita", "https://example.org/gdp.csv").
		AddRow("Life expectancy", nil).
		AddRow("GDP per capita", "https://example.org/other.csv").
		AddRow("Population", "https://example.org/population.csv")

	mock.ExpectQuery(`SELECT "metric", "data link full column names" FROM "public"\."metric_catalog" ORDER BY "position"`).
		WillReturnRows(rows)

	loader := NewLoader(Options{Table: "public.metric_catalog", OrderColumn: "position"}, nil)
	c, err := loader.LoadFromDB(context.Background(), db)
	if err != nil {
		t.Fatalf("LoadFromDB failed: %v", err)
	}

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if c.Dropped() != 2 {
		t.Errorf("expected 2 dropped rows, got %d", c.Dropped())
	}
	if e, _ := c.Lookup("GDP per capita"); e.SourceURL != "https://example.org/gdp.csv" {
		t.Errorf("first occurrence should win, got %q", e.SourceURL)
	}
	if c.Source() != "postgres:public.metric_catalog" {
		t.Errorf("unexpected source %q", c.Source())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestLoadFromDBErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "missing table", err: &pq.Error{Code: "42P01", Message: "relation does not exist"}, wantErr: ErrCatalogFormat},
		{name: "missing column", err: &pq.Error{Code: "42703", Message: "column does not exist"}, wantErr: ErrCatalogFormat},
		{name: "connection lost", err: sql.ErrConnDone, wantErr: ErrCatalogUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()

			mock.ExpectQuery(`SELECT .* FROM "metric_catalog"`).WillReturnError(tt.err)

			_, err = NewLoader(Options{}, nil).LoadFromDB(context.Background(), db)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadPostgresPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	loader := NewLoader(Options{}, nil)
	loader.openDB = func(string) (*sql.DB, error) { return db, nil }

	_, err = loader.Load(context.Background(), "postgres://owid@localhost/catalog?sslmode=disable")
	if !IsUnavailable(err) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestQuoteQualified(t *testing.T) {
	if got := quoteQualified("metric_catalog"); got != `"metric_catalog"` {
		t.Errorf("unexpected quoting: %s", got)
	}
	if got := quoteQualified("owid.metric_catalog"); got != `"owid"."metric_catalog"` {
		t.Errorf("unexpected quoting: %s", got)
	}
}
