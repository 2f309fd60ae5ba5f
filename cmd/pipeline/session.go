// Package pipeline wires the catalog, fetcher, country resolver and
// comparison engine into one session-scoped object.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/airframesio/country-compare/cmd/countries"
	"github.com/airframesio/country-compare/cmd/dataset"
)

// CatalogLoader is the part of catalog.Loader a session needs
type CatalogLoader interface {
	Load(ctx context.Context, location string) (*catalog.Catalog, error)
	LoadUpload(r io.Reader, name string) (*catalog.Catalog, error)
}

// Options configures a Session
type Options struct {
	CatalogLocation string
	Loader          CatalogLoader
	Getter          dataset.Getter
	Cache           *dataset.Cache
	MaxProbes       int
	Logger          *slog.Logger
}

// Session owns the memoized catalog, the per-URL dataset cache and the
// resolved country list. It is safe for concurrent use.
type Session struct {
	location string
	loader   CatalogLoader
	fetcher  *dataset.Fetcher
	resolver *countries.Resolver
	logger   *slog.Logger

	mu         sync.Mutex
	catalog    *catalog.Catalog
	resolution *countries.Resolution
}

// NewSession creates a session. Loader and Getter are required.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fetcher := dataset.NewFetcher(opts.Getter, opts.Cache, logger)
	return &Session{
		location: opts.CatalogLocation,
		loader:   opts.Loader,
		fetcher:  fetcher,
		resolver: countries.NewResolver(fetcher, opts.MaxProbes, logger),
		logger:   logger,
	}
}

// CatalogLocation returns the configured catalog location
func (s *Session) CatalogLocation() string {
	return s.location
}

// Catalog returns the session catalog, loading it on first use. A failed
// load is not memoized.
func (s *Session) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog != nil {
		return s.catalog, nil
	}

	start := time.Now()
	c, err := s.loader.Load(ctx, s.location)
	if err != nil {
		return nil, err
	}
	s.logger.Info(fmt.Sprintf("📚 Loaded catalog %s: %d metrics (%d rows dropped) in %v",
		c.Source(), c.Len(), c.Dropped(), time.Since(start).Round(time.Millisecond)))
	s.catalog = c
	return c, nil
}

// SetUploadedCatalog replaces the catalog with an uploaded file
func (s *Session) SetUploadedCatalog(r io.Reader, name string) (*catalog.Catalog, error) {
	c, err := s.loader.LoadUpload(r, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.catalog = c
	s.resolution = nil
	s.mu.Unlock()

	s.logger.Info(fmt.Sprintf("📤 Using uploaded catalog %s: %d metrics", name, c.Len()))
	return c, nil
}

// SetCatalogLocation points the session at another catalog and drops the
// memoized one.
func (s *Session) SetCatalogLocation(location string) {
	s.mu.Lock()
	s.location = location
	s.mu.Unlock()
	s.InvalidateCatalog()
}

// InvalidateCatalog forgets the memoized catalog and country list. The
// dataset cache is kept.
func (s *Session) InvalidateCatalog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = nil
	s.resolution = nil
}

// Metrics returns the selectable metric names
func (s *Session) Metrics(ctx context.Context) ([]string, error) {
	c, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return c.Metrics(), nil
}

// Countries resolves the country list once per catalog
func (s *Session) Countries(ctx context.Context) (countries.Resolution, error) {
	c, err := s.Catalog(ctx)
	if err != nil {
		return countries.Resolution{}, err
	}

	s.mu.Lock()
	cached := s.resolution
	s.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	res := s.resolver.Resolve(ctx, c.Entries())

	s.mu.Lock()
	if s.catalog == c {
		s.resolution = &res
	}
	s.mu.Unlock()
	return res, nil
}

// Compare runs one comparison: catalog lookup, fetch, then compare.
func (s *Session) Compare(ctx context.Context, metric, countryA, countryB string) (*comparison.Result, error) {
	c, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := c.Lookup(metric)
	if err != nil {
		return nil, err
	}

	s.logger.Info(fmt.Sprintf("🔎 Comparing %s vs %s: %s", countryA, countryB, metric))
	table, err := s.fetcher.Fetch(ctx, entry.SourceURL)
	if err != nil {
		return nil, err
	}

	res, err := comparison.Compare(table, countryA, countryB, metric)
	if err != nil {
		return nil, err
	}
	s.logger.Debug(fmt.Sprintf("Comparison used column %q with %d combined rows", res.Column, len(res.Combined)))
	return res, nil
}

// CachedDatasets returns how many datasets the session has memoized
func (s *Session) CachedDatasets() int {
	return s.fetcher.Cache().Len()
}
