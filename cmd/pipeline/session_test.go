package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/airframesio/country-compare/cmd/countries"
	"github.com/airframesio/country-compare/cmd/dataset"
)

const gdpURL = "https://example.org/gdp.csv"

// memGetter serves canned bodies and counts requests per URL
type memGetter struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newMemGetter(bodies map[string]string) *memGetter {
	return &memGetter{bodies: bodies, calls: make(map[string]int)}
}

func (g *memGetter) Get(_ context.Context, url string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[url]++
	body, ok := g.bodies[url]
	if !ok {
		return nil, &dataset.FetchError{URL: url, Status: http.StatusNotFound}
	}
	return []byte(body), nil
}

func (g *memGetter) count(url string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[url]
}

// stubLoader returns a fixed catalog and counts loads
type stubLoader struct {
	entries []catalog.Entry
	err     error
	loads   int
}

func (l *stubLoader) Load(_ context.Context, location string) (*catalog.Catalog, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	return catalog.New(l.entries, location), nil
}

func (l *stubLoader) LoadUpload(r io.Reader, name string) (*catalog.Catalog, error) {
	if r == nil {
		return nil, catalog.ErrCatalogUnavailable
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"metric", "data link full column names"}}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		rows = append(rows, strings.SplitN(line, ",", 2))
	}
	return catalog.FromRows(rows, "", "", "upload:"+name)
}

const gdpCSV = `Entity,Code,Year,GDP per capita
Wakanda,WAK,2000,100
Wakanda,WAK,2010,200
Wakanda,WAK,2020,150
Genovia,GEN,2005,50
Genovia,GEN,2015,80
`

func newTestSession(t *testing.T) (*Session, *memGetter, *stubLoader) {
	t.Helper()
	getter := newMemGetter(map[string]string{gdpURL: gdpCSV})
	loader := &stubLoader{entries: []catalog.Entry{
		{Metric: "Broken", SourceURL: "https://example.org/broken.csv"},
		{Metric: "GDP per capita", SourceURL: gdpURL},
	}}
	s := NewSession(Options{CatalogLocation: "owid_data.xlsx", Loader: loader, Getter: getter})
	return s, getter, loader
}

func TestSessionCompare(t *testing.T) {
	s, getter, _ := newTestSession(t)
	ctx := context.Background()

	res, err := s.Compare(ctx, "GDP per capita", "Wakanda", "Genovia")
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if res.LatestA.Value != 150 || res.LatestB.Value != 80 || res.Delta != -70 {
		t.Errorf("unexpected result %+v", res)
	}

	if _, err := s.Compare(ctx, "GDP per capita", "Genovia", "Wakanda"); err != nil {
		t.Fatal(err)
	}
	if n := getter.count(gdpURL); n != 1 {
		t.Errorf("expected one network call for %s, got %d", gdpURL, n)
	}
	if s.CachedDatasets() != 1 {
		t.Errorf("expected 1 cached dataset, got %d", s.CachedDatasets())
	}
}

func TestSessionCatalogMemoized(t *testing.T) {
	s, _, loader := newTestSession(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Metrics(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if loader.loads != 1 {
		t.Errorf("expected 1 catalog load, got %d", loader.loads)
	}

	s.InvalidateCatalog()
	if _, err := s.Metrics(ctx); err != nil {
		t.Fatal(err)
	}
	if loader.loads != 2 {
		t.Errorf("expected reload after invalidation, got %d loads", loader.loads)
	}
}

func TestSessionCatalogUnavailableThenUpload(t *testing.T) {
	getter := newMemGetter(map[string]string{gdpURL: gdpCSV})
	loader := &stubLoader{err: fmt.Errorf("%w: file not found", catalog.ErrCatalogUnavailable)}
	s := NewSession(Options{Loader: loader, Getter: getter})
	ctx := context.Background()

	_, err := s.Compare(ctx, "GDP per capita", "Wakanda", "Genovia")
	if got := Describe(err).Kind; got != KindCatalogUnavailable {
		t.Fatalf("expected %s, got %s (%v)", KindCatalogUnavailable, got, err)
	}

	upload := bytes.NewBufferString("GDP per capita," + gdpURL + "\n")
	if _, err := s.SetUploadedCatalog(upload, "owid_data.csv"); err != nil {
		t.Fatalf("SetUploadedCatalog failed: %v", err)
	}

	if _, err := s.Compare(ctx, "GDP per capita", "Wakanda", "Genovia"); err != nil {
		t.Fatalf("Compare after upload failed: %v", err)
	}
}

func TestSessionCountries(t *testing.T) {
	s, getter, _ := newTestSession(t)
	ctx := context.Background()

	res, err := s.Countries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback || strings.Join(res.Countries, ",") != "Genovia,Wakanda" {
		t.Fatalf("unexpected resolution %+v", res)
	}

	if _, err := s.Countries(ctx); err != nil {
		t.Fatal(err)
	}
	if n := getter.count("https://example.org/broken.csv"); n != 1 {
		t.Errorf("country list should be memoized, broken URL fetched %d times", n)
	}
}

func TestSessionCountriesFallback(t *testing.T) {
	loader := &stubLoader{entries: []catalog.Entry{{Metric: "x", SourceURL: "https://example.org/x.csv"}}}
	s := NewSession(Options{Loader: loader, Getter: newMemGetter(nil)})

	res, err := s.Countries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback || len(res.Countries) != len(countries.FallbackCountries) {
		t.Fatalf("expected fallback list, got %+v", res)
	}
}

func TestSessionCompareErrors(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		metric   string
		a, b     string
		wantKind string
		wantErr  error
	}{
		{"unknown metric", "Happiness", "Wakanda", "Genovia", KindInvalidMetricSelection, catalog.ErrInvalidMetricSelection},
		{"fetch failure", "Broken", "Wakanda", "Genovia", KindFetch, dataset.ErrFetch},
		{"unknown country", "GDP per capita", "Atlantis", "Genovia", KindNoDataForCountry, comparison.ErrNoDataForCountry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Compare(ctx, tt.metric, tt.a, tt.b)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := Describe(err).Kind; got != tt.wantKind {
				t.Errorf("Describe kind = %s, want %s", got, tt.wantKind)
			}
		})
	}
}
