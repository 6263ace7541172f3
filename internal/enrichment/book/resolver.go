package book

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// Resolver walks a list of enrichers in priority order and returns the
// first usable answer.
type Resolver struct {
	enrichers []Enricher
}

// NewResolver creates a resolver over the given enrichers. Ties in priority
// keep the order they were passed in.
func NewResolver(enrichers ...Enricher) *Resolver {
	sorted := slices.Clone(enrichers)
	slices.SortStableFunc(sorted, func(a, b Enricher) int {
		return a.Priority() - b.Priority()
	})
	return &Resolver{enrichers: sorted}
}

// Enrichers returns the enrichers in the order they will be tried.
func (r *Resolver) Enrichers() []Enricher {
	return slices.Clone(r.enrichers)
}

// Lookup asks each enricher in turn for isbn. The first non-empty result
// wins. Sources that reject the ISBN or fail are logged and skipped. If the
// context is done the walk stops and its error is returned. When no source
// has data Lookup returns nil, nil.
func (r *Resolver) Lookup(ctx context.Context, isbn string) (*EnricherResult, error) {
	for _, e := range r.enrichers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := e.Enrich(ctx, isbn)
		switch {
		case err == nil:
		case errors.Is(err, ErrInconsistentISBN):
			slog.Info("Metadata source rejected ISBN, trying next", "source", e.Name(), "isbn", isbn)
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Metadata source timed out", "source", e.Name(), "isbn", isbn, "error", err)
			continue
		default:
			slog.Warn("Metadata source failed", "source", e.Name(), "isbn", isbn, "error", err)
			continue
		}

		if data.Empty() {
			slog.Debug("No metadata from source", "source", e.Name(), "isbn", isbn)
			continue
		}

		slog.Debug("Metadata resolved", "source", e.Name(), "isbn", isbn)
		return &EnricherResult{Data: data, Source: e.Name(), Priority: e.Priority()}, nil
	}

	return nil, nil
}
