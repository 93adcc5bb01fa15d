// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which maps an original URL to its numeric short code,
// along with the error taxonomy shared by the use case and storage layers.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrInvalidURL is returned when the submitted value is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidShortCode is returned when a short code is not a non-negative integer.
	ErrInvalidShortCode = errors.New("invalid short code")
	// ErrURLNotFound is returned when no URL is stored for the requested key.
	ErrURLNotFound = errors.New("url not found")
	// ErrDuplicateKey is returned by a store when an insert violates the uniqueness
	// of either the original URL or the short code.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrAllocationConflict is returned when every allocation attempt lost a race.
	ErrAllocationConflict = errors.New("short code allocation conflict")
	// ErrStorageUnavailable wraps any storage failure that is not part of the normal flow.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// URL represents a shortened URL.
type URL struct {
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	ShortCode   int64     // ShortCode is the positive numeric code allocated for the URL.
	CreatedAt   time.Time // CreatedAt is the timestamp when the record was stored.
}
