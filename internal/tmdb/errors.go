// Package tmdb implements the movie metadata proxy: a thin HTTP client for
// the TMDB API plus a caching layer that validates every document it serves.
// This file centralizes the error taxonomy surfaced to handlers.
package tmdb

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the upstream API key is missing. The check
	// runs at request time so the process still boots without a key.
	ErrNotConfigured = errors.New("tmdb api key not configured")

	// ErrRateLimited indicates the upstream returned HTTP 429. It is kept
	// distinct from UpstreamError so callers can tell users to wait rather
	// than report a generic failure.
	ErrRateLimited = errors.New("tmdb rate limited")

	// ErrMalformed indicates a 2xx upstream body that does not match the
	// expected document shape. Malformed documents are never cached.
	ErrMalformed = errors.New("tmdb response malformed")

	// ErrInvalidQuery is returned for queries that are empty or longer than
	// the upstream accepts.
	ErrInvalidQuery = errors.New("query must be 1-255 characters")

	// ErrInvalidPage is returned for page numbers outside [1, 1000].
	ErrInvalidPage = errors.New("page must be between 1 and 1000")
)

// UpstreamError reports a non-2xx upstream status (other than 429) or a
// self-repair eviction of a poisoned cache entry.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tmdb upstream error (status %d)", e.Status)
}
