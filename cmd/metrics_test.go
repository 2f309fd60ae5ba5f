package cmd

import (
	"strings"
	"testing"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/countries"
)

func TestRenderCatalog(t *testing.T) {
	cat := catalog.New([]catalog.Entry{
		{Metric: "GDP per capita", SourceURL: "https://example.org/gdp.csv"},
		{Metric: "Life expectancy", SourceURL: "https://example.org/life.csv"},
	}, "test")

	plain := renderCatalog(cat, false)
	if !strings.Contains(plain, "GDP per capita") || !strings.Contains(plain, "Life expectancy") {
		t.Errorf("metrics missing from table:\n%s", plain)
	}
	if strings.Contains(plain, "example.org") {
		t.Error("links should be hidden by default")
	}
	if strings.Index(plain, "GDP per capita") > strings.Index(plain, "Life expectancy") {
		t.Error("catalog order not kept")
	}

	withLinks := renderCatalog(cat, true)
	if !strings.Contains(withLinks, "https://example.org/life.csv") {
		t.Errorf("links missing:\n%s", withLinks)
	}
}

func TestRenderCountries(t *testing.T) {
	res := countries.Resolution{Countries: countries.Fallback(), Fallback: true}
	out := renderCountries(res)

	for _, c := range countries.FallbackCountries {
		if !strings.Contains(out, c) {
			t.Errorf("country %q missing", c)
		}
	}
	if strings.Index(out, "United States") > strings.Index(out, "South Africa") {
		t.Error("fallback order not kept")
	}
}
