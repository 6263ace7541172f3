package book

import "errors"

var (
	// ErrInvalidISBN is returned when the provided ISBN is invalid.
	ErrInvalidISBN = errors.New("invalid ISBN")

	// ErrInconsistentISBN is returned when a source rejects the ISBN or
	// answers for a different one. The resolver moves on to the next source.
	ErrInconsistentISBN = errors.New("inconsistent ISBN")

	// ErrAPIUnavailable is returned when the external API is unavailable.
	ErrAPIUnavailable = errors.New("API unavailable")
)
