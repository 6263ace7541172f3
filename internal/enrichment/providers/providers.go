// Package providers implements book.Enricher for the remote ISBN metadata
// services: ISBNdb, OpenLibrary and Google Books.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/ook/internal/cache"
	"github.com/lepinkainen/ook/internal/enrichment/book"
	ookerrors "github.com/lepinkainen/ook/internal/errors"
	"github.com/lepinkainen/ook/internal/ratelimit"
	"github.com/spf13/viper"
)

const defaultHTTPTimeout = 10 * time.Second

// Default returns every provider in its built-in priority order.
func Default() []book.Enricher {
	return []book.Enricher{
		NewISBNdbEnricher(),
		NewOpenLibraryEnricher(),
		NewGoogleBooksEnricher(),
	}
}

// ByName returns the named providers, tried in the order given. Names are
// matched case-insensitively against the provider config keys (isbndb,
// openlibrary, googlebooks). An empty list yields Default().
func ByName(names []string) ([]book.Enricher, error) {
	if len(names) == 0 {
		return Default(), nil
	}

	available := map[string]func() book.Enricher{
		isbndbKey:      func() book.Enricher { return NewISBNdbEnricher() },
		openLibraryKey: func() book.Enricher { return NewOpenLibraryEnricher() },
		googleBooksKey: func() book.Enricher { return NewGoogleBooksEnricher() },
	}

	enrichers := make([]book.Enricher, 0, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		ctor, ok := available[key]
		if !ok {
			return nil, fmt.Errorf("unknown metadata provider %q", name)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		enrichers = append(enrichers, ordered{Enricher: ctor(), priority: i})
	}
	return enrichers, nil
}

// ordered overrides the built-in priority of an enricher.
type ordered struct {
	book.Enricher
	priority int
}

func (o ordered) Priority() int { return o.priority }

// baseURL returns "<key>.base_url" from config, or fallback.
func baseURL(key, fallback string) string {
	if u := viper.GetString(key + ".base_url"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return fallback
}

// newLimiter builds the provider's rate limiter from "<key>.rate_limit"
// (requests per second), defaulting to one request per second.
func newLimiter(name, key string) *ratelimit.Limiter {
	rps := 1.0
	if viper.IsSet(key + ".rate_limit") {
		rps = viper.GetFloat64(key + ".rate_limit")
	}
	return ratelimit.New(name, rps)
}

// rateLimited turns an HTTP 429 into a RateLimitError.
func rateLimited(name string, resp *http.Response) error {
	return ookerrors.NewRateLimitErrorWithRetry(
		fmt.Sprintf("%s rate limit exceeded", name),
		ookerrors.ParseRetryAfter(resp.Header.Get("Retry-After")),
	)
}

// unexpectedStatus reads a short snippet of the body for the error message.
// Server errors wrap book.ErrAPIUnavailable.
func unexpectedStatus(name string, resp *http.Response) error {
	msg := fmt.Sprintf("%s returned status %d", name, resp.StatusCode)
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if len(snippet) > 0 {
		msg += ": " + strings.TrimSpace(string(snippet))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", book.ErrAPIUnavailable, msg)
	}
	return errors.New(msg)
}

// cachedLookup wraps EnrichmentData with metadata for caching.
type cachedLookup struct {
	Data     *book.EnrichmentData `json:"data"`
	NotFound bool                 `json:"not_found"`
}

func isNotFound(r *cachedLookup) bool { return r.NotFound }

// lookup answers from the response cache table, or goes straight to fetch
// and overwrites the entry when ctx asks for a fresh lookup.
func lookup(ctx context.Context, table, code string, fetch cache.FetchFunc[*cachedLookup]) (*cachedLookup, error) {
	ttl := cache.SelectNegativeCacheTTL(isNotFound)
	if book.IsFreshLookup(ctx) {
		return cache.RefreshWithTTL(table, code, fetch, ttl)
	}
	cached, _, err := cache.GetOrFetchWithTTL(table, code, fetch, ttl)
	return cached, err
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
