package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DefaultTable is the PostgreSQL table read for postgres:// catalog locations
const DefaultTable = "metric_catalog"

func isPostgresDSN(location string) bool {
	return strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "postgresql://")
}

func (l *Loader) loadPostgres(ctx context.Context, dsn string) (*Catalog, error) {
	db, err := l.openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	return l.LoadFromDB(ctx, db)
}

// LoadFromDB reads the catalog table through an open connection. The metric
// and link columns use the same names as the spreadsheet header.
func (l *Loader) LoadFromDB(ctx context.Context, db *sql.DB) (*Catalog, error) {
	table := l.opts.Table
	if table == "" {
		table = DefaultTable
	}
	metricColumn := l.opts.MetricColumn
	if metricColumn == "" {
		metricColumn = DefaultMetricColumn
	}
	linkColumn := l.opts.LinkColumn
	if linkColumn == "" {
		linkColumn = DefaultLinkColumn
	}

	//nolint:gosec // identifiers are quoted with pq.QuoteIdentifier
	query := fmt.Sprintf("SELECT %s, %s FROM %s",
		pq.QuoteIdentifier(metricColumn), pq.QuoteIdentifier(linkColumn), quoteQualified(table))
	if l.opts.OrderColumn != "" {
		query += " ORDER BY " + pq.QuoteIdentifier(l.opts.OrderColumn)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		if isUndefinedObject(err) {
			return nil, fmt.Errorf("%w: %w", ErrCatalogFormat, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	raw := make([]Entry, 0)
	for rows.Next() {
		var metric, link sql.NullString
		if err := rows.Scan(&metric, &link); err != nil {
			return nil, fmt.Errorf("%w: failed to scan catalog row: %w", ErrCatalogFormat, err)
		}
		raw = append(raw, Entry{Metric: metric.String, SourceURL: link.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating catalog rows: %w", ErrCatalogUnavailable, err)
	}

	c := New(raw, "postgres:"+table)
	l.logger.Debug(fmt.Sprintf("Catalog table %s: %d metrics, %d rows dropped", table, c.Len(), c.Dropped()))
	return c, nil
}

// quoteQualified quotes each part of a possibly schema-qualified name
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// isUndefinedObject reports a missing table or column (SQLSTATE 42P01 / 42703)
func isUndefinedObject(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "42P01" || pqErr.Code == "42703"
}
