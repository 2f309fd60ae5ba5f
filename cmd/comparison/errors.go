package comparison

import (
	"errors"
	"fmt"
)

// Static errors returned by Compare
var (
	ErrColumnNotFound      = errors.New("column not found")
	ErrNoDataForCountry    = errors.New("no data for country")
	ErrMissingCurrentValue = errors.New("missing current value")
)

// ColumnNotFoundError names the column that could not be resolved
type ColumnNotFoundError struct {
	Metric string
	Column string // set when a required identifier column is absent
}

func (e *ColumnNotFoundError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("invalid data format: missing %s column", e.Column)
	}
	return fmt.Sprintf("could not find data column for %s", e.Metric)
}

func (e *ColumnNotFoundError) Is(target error) bool {
	return target == ErrColumnNotFound
}

// NoDataError reports a country with no rows. Which is "A" or "B".
type NoDataError struct {
	Which   string
	Country string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data available for %s (country %s)", e.Country, e.Which)
}

func (e *NoDataError) Is(target error) bool {
	return target == ErrNoDataForCountry
}

// MissingValueError reports a missing value at a country's latest year
type MissingValueError struct {
	Country string
	Year    int
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("missing data value for %s in %d", e.Country, e.Year)
}

func (e *MissingValueError) Is(target error) bool {
	return target == ErrMissingCurrentValue
}
