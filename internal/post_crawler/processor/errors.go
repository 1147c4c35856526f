package processor

import "errors"

var (
	// ErrValidation rejects input before any lookup or fetch.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidURL rejects URLs whose decoded form is not plain ASCII.
	ErrInvalidURL = errors.New("invalid url")
	// ErrNotFound means a detail was requested for a url with no summary.
	ErrNotFound = errors.New("summary not found")
	// ErrExtractionFailed wraps the fetch or extraction failure of a detail page.
	ErrExtractionFailed = errors.New("extraction failed")
)
