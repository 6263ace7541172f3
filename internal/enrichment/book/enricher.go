// Package book provides interfaces and utilities for resolving book metadata
// from multiple external sources.
package book

import (
	"context"
	"strings"
)

// Enricher defines the interface for fetching book information from external sources.
// Each implementation should handle its own authentication, rate limiting, and data
// transformation to the common EnrichmentData format.
type Enricher interface {
	// Name returns the human-readable name of the source (e.g., "OpenLibrary").
	Name() string

	// Priority returns the position of the source in the fallback order.
	// Lower values are tried first.
	Priority() int

	// Ping tests the connection to the source and returns an error if it
	// cannot be reached for whatever reason.
	Ping(ctx context.Context) error

	// Enrich retrieves book information using the provided ISBN.
	// Returns nil, nil if book not found (allows other enrichers to try).
	// Returns ErrInconsistentISBN if the source rejects or contradicts the ISBN.
	// Returns nil, error for actual errors (network issues, rate limits, etc.)
	Enrich(ctx context.Context, isbn string) (*EnrichmentData, error)
}

// EnrichmentData contains book metadata extracted from an external source.
// Pointer fields distinguish "not set" from "empty string".
type EnrichmentData struct {
	// Title is the main title of the book.
	Title *string `json:"title,omitempty"`

	// Subtitle is the secondary title or tagline.
	Subtitle *string `json:"subtitle,omitempty"`

	// Publisher is the publishing company name.
	Publisher *string `json:"publisher,omitempty"`

	// PublishDate is the publication date (format varies by source).
	PublishDate *string `json:"publish_date,omitempty"`

	// Authors are the book's author names.
	Authors []string `json:"authors,omitempty"`
}

// Empty reports whether d carries neither a title nor any author. Such a
// response is treated the same as "not found".
func (d *EnrichmentData) Empty() bool {
	if d == nil {
		return true
	}
	if d.Title != nil && strings.TrimSpace(*d.Title) != "" {
		return false
	}
	for _, a := range d.Authors {
		if strings.TrimSpace(a) != "" {
			return false
		}
	}
	return true
}
