package dataset

import (
	"errors"
	"fmt"
)

// Static errors for dataset retrieval
var (
	ErrFetch = errors.New("failed to fetch dataset")
	ErrParse = errors.New("failed to parse dataset")

	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// FetchError reports a failed download. Status is set for non-success
// HTTP responses; Cause is set for transport failures and timeouts.
type FetchError struct {
	URL    string
	Status int
	Cause  error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d from %s", ErrFetch, e.Status, e.URL)
	}
	return fmt.Sprintf("%s: %s: %v", ErrFetch, e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is lets callers match any FetchError with errors.Is(err, ErrFetch)
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// ParseError reports a CSV payload that could not be turned into a Table.
// Line is 1-based and zero when the failure is not tied to a line.
type ParseError struct {
	Line   int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := ErrParse.Error()
	if e.Line > 0 {
		msg = fmt.Sprintf("%s: line %d", msg, e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
