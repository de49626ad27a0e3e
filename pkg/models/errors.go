package models

import (
	"errors"
	"fmt"
)

var (
	ErrFetch             = errors.New("fetch failed")
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrBlocked           = errors.New("blocked by bot protection")
	ErrExtraction        = errors.New("extraction failed")
	// ErrNoResults means the site said it has nothing for the query. It is not a failure.
	ErrNoResults = errors.New("no results")
	// ErrNoItems means the page rendered no product items and no "no results" notice,
	// usually changed markup or content that had not loaded yet.
	ErrNoItems = errors.New("no product items")
	ErrTimeout = errors.New("source timed out")
)

// FetchError is returned for non-2xx responses and transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
