// Package countries derives the selectable country list from the catalog.
package countries

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/dataset"
)

// FallbackCountries is used when no catalog dataset yields an entity list.
// Order is significant and is not sorted.
var FallbackCountries = []string{
	"United States", "China", "India", "Russia", "Germany",
	"United Kingdom", "France", "Japan", "Brazil", "Canada",
	"Australia", "Italy", "Spain", "Mexico", "South Korea",
	"Indonesia", "Turkey", "Saudi Arabia", "Argentina", "South Africa",
}

// TableFetcher is the part of dataset.Fetcher the resolver needs
type TableFetcher interface {
	Fetch(ctx context.Context, url string) (*dataset.Table, error)
}

// Resolution is the outcome of a resolve run
type Resolution struct {
	Countries []string
	Source    string // URL the list came from, empty on fallback
	Probed    int
	Fallback  bool
}

// Resolver probes catalog datasets in order until one lists entities
type Resolver struct {
	fetcher   TableFetcher
	maxProbes int
	logger    *slog.Logger
}

// NewResolver creates a resolver. maxProbes <= 0 probes every entry.
func NewResolver(fetcher TableFetcher, maxProbes int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		fetcher:   fetcher,
		maxProbes: maxProbes,
		logger:    logger,
	}
}

// Resolve returns the sorted distinct entities of the first entry whose
// table has an Entity column. Probing stops at that table even when it holds
// no entities, in which case the fallback list is returned. Resolve never
// fails: when every probe fails the fallback list is returned as well.
func (r *Resolver) Resolve(ctx context.Context, entries []catalog.Entry) Resolution {
	probed := 0
	for i, entry := range entries {
		if r.maxProbes > 0 && probed >= r.maxProbes {
			r.logger.Debug(fmt.Sprintf("Stopping country probe after %d datasets", probed))
			break
		}
		if ctx.Err() != nil {
			break
		}
		if entry.SourceURL == "" {
			continue
		}

		probed++
		r.logger.Debug(fmt.Sprintf("Trying to load country list from dataset %d (%s)", i+1, entry.Metric))

		table, err := r.fetcher.Fetch(ctx, entry.SourceURL)
		if err != nil {
			r.logger.Debug(fmt.Sprintf("Country probe failed for %s: %v", entry.SourceURL, err))
			continue
		}

		if !table.HasColumn(dataset.EntityColumn) {
			r.logger.Debug(fmt.Sprintf("Dataset %s has no %s column", entry.SourceURL, dataset.EntityColumn))
			continue
		}

		entities := table.Entities()
		if len(entities) == 0 {
			r.logger.Debug(fmt.Sprintf("Dataset %s has an %s column but no entities", entry.SourceURL, dataset.EntityColumn))
			break
		}

		r.logger.Info(fmt.Sprintf("🌍 Loaded %d countries from %s", len(entities), entry.Metric))
		return Resolution{
			Countries: entities,
			Source:    entry.SourceURL,
			Probed:    probed,
		}
	}

	r.logger.Warn("⚠️  Could not load country list from data sources, using a default list")
	return Resolution{
		Countries: Fallback(),
		Probed:    probed,
		Fallback:  true,
	}
}

// Fallback returns a copy of FallbackCountries
func Fallback() []string {
	out := make([]string, len(FallbackCountries))
	copy(out, FallbackCountries)
	return out
}
