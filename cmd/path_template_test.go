package cmd

import (
	"testing"
	"time"

	"github.com/airframesio/country-compare/cmd/comparison"
)

func TestPathTemplate(t *testing.T) {
	res := &comparison.Result{
		Metric:   "GDP per capita (constant 2015 US$)",
		CountryA: "United States",
		CountryB: "Côte d'Ivoire",
	}
	ts := time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"plain path", "exports/gdp", "exports/gdp"},
		{"metric and countries", "exports/{metric}/{a}-vs-{b}", "exports/gdp-per-capita-constant-2015-us/united-states-vs-côte-d-ivoire"},
		{"date parts", "{YYYY}/{MM}/{DD}/{metric}", "2024/03/07/gdp-per-capita-constant-2015-us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPathTemplate(tt.template).Generate(res, ts)
			if got != tt.expected {
				t.Errorf("Generate(%q) = %q, want %q", tt.template, got, tt.expected)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Life expectancy", "life-expectancy"},
		{"  CO2 -- emissions!! ", "co2-emissions"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := slug(tt.in); got != tt.want {
			t.Errorf("slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
