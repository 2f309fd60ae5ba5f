package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/airframesio/country-compare/cmd/dataset"
)

// Error kinds reported to users
const (
	KindCatalogUnavailable     = "CatalogUnavailable"
	KindCatalogFormat          = "CatalogFormatError"
	KindFetch                  = "FetchError"
	KindParse                  = "ParseError"
	KindColumnNotFound         = "ColumnNotFound"
	KindNoDataForCountry       = "NoDataForCountry"
	KindMissingCurrentValue    = "MissingCurrentValue"
	KindInvalidMetricSelection = "InvalidMetricSelection"
	KindCancelled              = "Cancelled"
	KindInternal               = "Internal"
)

// Problem is the user-facing rendering of an error
type Problem struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Hint    string `json:"hint,omitempty"`
}

// Describe classifies err into a user-visible problem
func Describe(err error) Problem {
	p := Problem{Kind: KindInternal, Message: err.Error(), Status: http.StatusInternalServerError}

	var fetchErr *dataset.FetchError
	switch {
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		p.Kind, p.Status = KindCatalogUnavailable, http.StatusServiceUnavailable
		p.Hint = "upload a catalog file to continue"
	case errors.Is(err, catalog.ErrCatalogFormat):
		p.Kind, p.Status = KindCatalogFormat, http.StatusUnprocessableEntity
		p.Hint = "the catalog needs a 'metric' column and a 'data link full column names' column"
	case errors.Is(err, catalog.ErrInvalidMetricSelection):
		p.Kind, p.Status = KindInvalidMetricSelection, http.StatusBadRequest
	case errors.As(err, &fetchErr):
		p.Kind, p.Status = KindFetch, http.StatusBadGateway
		if fetchErr.Status == 0 {
			p.Hint = "check the URL or your internet connection"
		}
		if errors.Is(err, context.DeadlineExceeded) {
			p.Status = http.StatusGatewayTimeout
		}
	case errors.Is(err, dataset.ErrParse):
		p.Kind, p.Status = KindParse, http.StatusBadGateway
	case errors.Is(err, comparison.ErrColumnNotFound):
		p.Kind, p.Status = KindColumnNotFound, http.StatusUnprocessableEntity
	case errors.Is(err, comparison.ErrNoDataForCountry):
		p.Kind, p.Status = KindNoDataForCountry, http.StatusNotFound
	case errors.Is(err, comparison.ErrMissingCurrentValue):
		p.Kind, p.Status = KindMissingCurrentValue, http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		p.Kind, p.Status = KindCancelled, 499
	}

	return p
}
