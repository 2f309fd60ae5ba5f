package countries

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/dataset"
)

type fakeFetcher struct {
	tables map[string]string
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*dataset.Table, error) {
	f.calls = append(f.calls, url)
	body, ok := f.tables[url]
	if !ok {
		return nil, &dataset.FetchError{URL: url, Status: 404}
	}
	return dataset.ParseCSV([]byte(body))
}

func TestResolveFirstSuccessWins(t *testing.T) {
	fetcher := &fakeFetcher{tables: map[string]string{
		"https://example.org/no-entity.csv": "Country,Year,value\nWakanda,2000,1\n",
		"https://example.org/gdp.csv":       "Entity,Code,Year,gdp\nWakanda,WAK,2000,1\nGenovia,GEN,2005,2\nWakanda,WAK,2010,3\n",
		"https://example.org/pop.csv":       "Entity,Year,pop\nElbonia,2000,1\n",
	}}
	entries := []catalog.Entry{
		{Metric: "broken", SourceURL: "https://example.org/missing.csv"},
		{Metric: "no entity", SourceURL: "https://example.org/no-entity.csv"},
		{Metric: "GDP per capita", SourceURL: "https://example.org/gdp.csv"},
		{Metric: "Population", SourceURL: "https://example.org/pop.csv"},
	}

	res := NewResolver(fetcher, 0, nil).Resolve(context.Background(), entries)

	if res.Fallback {
		t.Fatal("expected resolution from a dataset, got fallback")
	}
	if want := []string{"Genovia", "Wakanda"}; !reflect.DeepEqual(res.Countries, want) {
		t.Errorf("Countries = %v, want %v", res.Countries, want)
	}
	if res.Source != "https://example.org/gdp.csv" {
		t.Errorf("Source = %q", res.Source)
	}
	if res.Probed != 3 {
		t.Errorf("Probed = %d, want 3", res.Probed)
	}
	for _, url := range fetcher.calls {
		if url == "https://example.org/pop.csv" {
			t.Error("resolution should stop at the first success")
		}
	}
}

func TestResolveFallback(t *testing.T) {
	entries := []catalog.Entry{
		{Metric: "a", SourceURL: "https://example.org/a.csv"},
		{Metric: "b", SourceURL: "https://example.org/b.csv"},
	}

	res := NewResolver(&fakeFetcher{}, 0, nil).Resolve(context.Background(), entries)

	if !res.Fallback {
		t.Fatal("expected fallback")
	}
	want := []string{
		"United States", "China", "India", "Russia", "Germany",
		"United Kingdom", "France", "Japan", "Brazil", "Canada",
		"Australia", "Italy", "Spain", "Mexico", "South Korea",
		"Indonesia", "Turkey", "Saudi Arabia", "Argentina", "South Africa",
	}
	if !reflect.DeepEqual(res.Countries, want) {
		t.Errorf("fallback list mismatch:\n got %v\nwant %v", res.Countries, want)
	}

	res.Countries[0] = "Wakanda"
	if FallbackCountries[0] != "United States" {
		t.Error("callers must not be able to modify FallbackCountries")
	}
}

func TestResolveStopsAtFirstEntityColumn(t *testing.T) {
	tests := []struct {
		name      string
		first     string
		fallback  bool
		countries []string
		fetches   int
	}{
		{"empty entity column falls back", "Entity,Year,value\n", true, Fallback(), 1},
		{"blank entities fall back", "Entity,Year,value\n,2000,1\n", true, Fallback(), 1},
		{"no entity column keeps probing", "Country,Year,value\nWakanda,2000,1\n", false, []string{"Genovia"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{tables: map[string]string{
				"https://example.org/first.csv": tt.first,
				"https://example.org/gdp.csv":   "Entity,Year,gdp\nGenovia,2005,2\n",
			}}
			entries := []catalog.Entry{
				{Metric: "first", SourceURL: "https://example.org/first.csv"},
				{Metric: "gdp", SourceURL: "https://example.org/gdp.csv"},
			}

			res := NewResolver(fetcher, 0, nil).Resolve(context.Background(), entries)
			if res.Fallback != tt.fallback {
				t.Fatalf("Fallback = %v, want %v", res.Fallback, tt.fallback)
			}
			if !reflect.DeepEqual(res.Countries, tt.countries) {
				t.Errorf("Countries = %v, want %v", res.Countries, tt.countries)
			}
			if len(fetcher.calls) != tt.fetches {
				t.Errorf("expected %d fetches, got %d", tt.fetches, len(fetcher.calls))
			}
		})
	}
}

func TestResolveMaxProbes(t *testing.T) {
	fetcher := &fakeFetcher{tables: map[string]string{
		"https://example.org/c.csv": "Entity,Year,v\nGenovia,2005,2\n",
	}}
	entries := []catalog.Entry{
		{Metric: "a", SourceURL: "https://example.org/a.csv"},
		{Metric: "b", SourceURL: "https://example.org/b.csv"},
		{Metric: "c", SourceURL: "https://example.org/c.csv"},
	}

	res := NewResolver(fetcher, 2, nil).Resolve(context.Background(), entries)
	if !res.Fallback {
		t.Fatal("expected fallback after two failed probes")
	}
	if len(fetcher.calls) != 2 {
		t.Errorf("expected 2 fetches, got %d", len(fetcher.calls))
	}
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	res := NewResolver(fetcher, 0, nil).Resolve(ctx, []catalog.Entry{{Metric: "a", SourceURL: "u"}})
	if !res.Fallback {
		t.Fatal("expected fallback on cancelled context")
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("expected no fetches, got %d", len(fetcher.calls))
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatal("context should be cancelled")
	}
}
