package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/lepinkainen/ook/internal/enrichment/book"
)

// ImportMetadata looks up the book's ISBN and overwrites title, authors,
// publisher, year, data source and import time with the answer. It reports
// whether anything was imported; when no source has data the book is left
// unchanged and no error is returned.
func (b *Book) ImportMetadata(ctx context.Context) (bool, error) {
	if b.cat.metadata == nil {
		return false, nil
	}

	code, err := b.ISBN(ctx)
	if err != nil {
		return false, err
	}
	if code == "" {
		return false, fmt.Errorf("%w: book %d has no ISBN", ErrInvalidInput, b.id)
	}

	result, err := b.cat.metadata.Lookup(ctx, code)
	if err != nil {
		return false, fmt.Errorf("metadata lookup for %s: %w", code, err)
	}
	if result == nil || result.Data.Empty() {
		slog.Info("No metadata found", "id", b.id, "isbn", code)
		return false, nil
	}

	now := b.cat.now().UTC()
	if err := b.Edit(ctx, func(d *BookData) {
		applyMetadata(d, result)
		d.ImportedAt = now
	}); err != nil {
		return false, err
	}
	if err := b.Save(ctx); err != nil {
		return false, err
	}

	slog.Info("Metadata imported", "id", b.id, "isbn", code, "source", result.Source)
	return true, nil
}

// RefreshMetadata is ImportMetadata for an explicit re-fetch: the sources
// are queried directly and the provider response cache is overwritten
// rather than consulted.
func (b *Book) RefreshMetadata(ctx context.Context) (bool, error) {
	return b.ImportMetadata(book.WithFreshLookup(ctx))
}

// applyMetadata overwrites the bibliographic fields; nothing is merged.
func applyMetadata(d *BookData, r *book.EnricherResult) {
	data := r.Data
	d.Title = deref(data.Title)
	d.Authors = JoinAuthors(data.Authors)
	d.Publisher = deref(data.Publisher)
	d.Year = parseYear(deref(data.PublishDate))
	d.DataSource = r.Source
}

// JoinAuthors sorts names case-insensitively and joins them with ", ".
func JoinAuthors(names []string) string {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	slices.SortStableFunc(cleaned, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return strings.Join(cleaned, ", ")
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// parseYear returns the first four-digit run of a free-form publish date,
// e.g. "March 2003" or "2003-04-29", or 0.
func parseYear(date string) int {
	m := yearPattern.FindString(date)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
