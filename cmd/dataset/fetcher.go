package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/airframesio/country-compare/cmd/compressors"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTimeout bounds a single dataset download
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent with every request; some data hosts reject
	// requests that do not look like they come from a browser.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	maxBodyBytes = 256 << 20
)

// Getter retrieves the raw bytes behind a URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPGetter is a Getter backed by net/http.
type HTTPGetter struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewHTTPGetter creates a getter with the given per-request timeout and User-Agent.
// Zero values fall back to DefaultTimeout and DefaultUserAgent.
func NewHTTPGetter(timeout time.Duration, userAgent string) *HTTPGetter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPGetter{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBody:   maxBodyBytes,
	}
}

// Get performs the GET request and returns the body of a 2xx response.
func (g *HTTPGetter) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Cause: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "text/csv, */*")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	// One extra byte tells an oversized body apart from one exactly at the limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBody+1))
	if err != nil {
		return nil, &FetchError{URL: url, Cause: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(body)) > g.maxBody {
		return nil, &FetchError{URL: url, Cause: fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, g.maxBody)}
	}
	return body, nil
}

// Cache holds parsed tables keyed by exact URL for the lifetime of a session.
type Cache struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewCache creates an empty session cache
func NewCache() *Cache {
	return &Cache{tables: make(map[string]*Table)}
}

// Get returns the cached table for url
func (c *Cache) Get(url string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[url]
	return t, ok
}

// Put stores a table for url
func (c *Cache) Put(url string, t *Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[url] = t
}

// Len returns the number of cached URLs
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}

// Fetcher downloads and parses datasets, memoizing successful results per URL.
type Fetcher struct {
	getter Getter
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewFetcher wires a Getter to a session cache. A nil cache gets a fresh one.
func NewFetcher(getter Getter, cache *Cache, logger *slog.Logger) *Fetcher {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{
		getter: getter,
		cache:  cache,
		logger: logger,
	}
}

// Cache exposes the session cache backing this fetcher
func (f *Fetcher) Cache() *Cache {
	return f.cache
}

// Fetch returns the table behind url. Repeated calls for the same URL are
// served from the cache; concurrent first calls share one download.
// Failures are not cached, so a later call retries the download.
//
// The shared download is detached from any single caller's cancellation.
// A caller whose ctx ends stops waiting and gets a FetchError, while the
// others keep waiting for the result.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Table, error) {
	if t, ok := f.cache.Get(url); ok {
		f.logger.Debug(fmt.Sprintf("Dataset cache hit: %s", url))
		return t, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: url, Cause: err}
	}

	download := context.WithoutCancel(ctx)
	ch := f.group.DoChan(url, func() (interface{}, error) {
		// Another caller may have filled the cache while we waited
		if t, ok := f.cache.Get(url); ok {
			return t, nil
		}

		start := time.Now()
		f.logger.Debug(fmt.Sprintf("Downloading dataset: %s", url))
		body, err := f.getter.Get(download, url)
		if err != nil {
			return nil, err
		}

		body, encoding, err := compressors.Decode(body)
		if err != nil {
			return nil, &ParseError{Reason: "undecodable payload", Err: err}
		}

		t, err := ParseCSV(body)
		if err != nil {
			return nil, err
		}

		if t.Skipped > 0 {
			f.logger.Debug(fmt.Sprintf("Skipped %d rows without a whole-number year in %s", t.Skipped, url))
		}

		f.cache.Put(url, t)
		f.logger.Debug(fmt.Sprintf("Parsed %d rows x %d columns from %s (compression: %s) in %v",
			len(t.Rows), len(t.Columns), url, encoding, time.Since(start).Round(time.Millisecond)))
		return t, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Table), nil
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Cause: ctx.Err()}
	}
}
