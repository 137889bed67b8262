package content

import "errors"

var (
	// ErrFetch indicates that a remote source was unreachable or returned a malformed response.
	ErrFetch = errors.New("content: fetch failed")
	// ErrNotFound indicates that a key is absent from the directory.
	ErrNotFound = errors.New("content: not found")
	// ErrEmptyCatalog indicates that the catalog holds no items.
	ErrEmptyCatalog = errors.New("content: empty catalog")
	// ErrUnavailable indicates that no configured backend could serve the request.
	ErrUnavailable = errors.New("content: unavailable")
	// ErrConfiguration indicates that a required backend setting is missing.
	ErrConfiguration = errors.New("content: configuration error")
)
