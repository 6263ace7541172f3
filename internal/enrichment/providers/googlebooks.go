package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/lepinkainen/ook/internal/enrichment/book"
	"github.com/lepinkainen/ook/internal/isbn"
	"github.com/lepinkainen/ook/internal/ratelimit"
	"github.com/spf13/viper"
)

const (
	googleBooksKey      = "googlebooks"
	googleBooksBaseURL  = "https://www.googleapis.com/books/v1"
	googleBooksPriority = 2
)

// GoogleBooksEnricher implements the book.Enricher interface for Google Books API.
type GoogleBooksEnricher struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

// Compile-time check that GoogleBooksEnricher implements book.Enricher.
var _ book.Enricher = (*GoogleBooksEnricher)(nil)

// NewGoogleBooksEnricher creates a new Google Books enricher.
func NewGoogleBooksEnricher() *GoogleBooksEnricher {
	return &GoogleBooksEnricher{}
}

// Name returns the human-readable name of this enricher.
func (e *GoogleBooksEnricher) Name() string {
	return "GoogleBooks"
}

// Priority returns the position in the fallback order (lower = tried first).
func (e *GoogleBooksEnricher) Priority() int {
	return googleBooksPriority
}

// Ping tests the connection to Google Books API.
func (e *GoogleBooksEnricher) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.volumesURL("isbn:9780140447934"), nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}

	resp, err := e.getHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("google books ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(e.Name(), resp)
	}

	return nil
}

// Enrich fetches book data from Google Books API by ISBN.
func (e *GoogleBooksEnricher) Enrich(ctx context.Context, code string) (*book.EnrichmentData, error) {
	normalized, err := isbn.Validate(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", book.ErrInvalidISBN, err)
	}

	cached, err := lookup(ctx, "googlebooks_cache", normalized, func() (*cachedLookup, error) {
		return e.fetchFromAPI(ctx, normalized)
	})
	if err != nil {
		return nil, err
	}

	if cached.NotFound {
		return nil, nil // Not found allows other enrichers to try
	}
	return cached.Data, nil
}

// googleBooksResponse matches the Google Books API response structure.
type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Subtitle            string   `json:"subtitle"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (e *GoogleBooksEnricher) volumesURL(query string) string {
	params := url.Values{}
	params.Set("q", query)
	if apiKey := viper.GetString("googlebooks.api_key"); apiKey != "" {
		params.Set("key", apiKey)
	}
	return baseURL(googleBooksKey, googleBooksBaseURL) + "/volumes?" + params.Encode()
}

func (e *GoogleBooksEnricher) fetchFromAPI(ctx context.Context, code string) (*cachedLookup, error) {
	if err := e.getRateLimiter().Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.volumesURL("isbn:"+code), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := e.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, rateLimited(e.Name(), resp)
	default:
		return nil, unexpectedStatus(e.Name(), resp)
	}

	var result googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return &cachedLookup{NotFound: true}, nil
	}

	// Use first item (best match)
	vol := result.Items[0].VolumeInfo

	if len(vol.IndustryIdentifiers) > 0 {
		matched := false
		for _, id := range vol.IndustryIdentifiers {
			if (id.Type == "ISBN_10" || id.Type == "ISBN_13") && isbn.Equal(id.Identifier, code) {
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("GoogleBooks: %w: best match does not carry %s", book.ErrInconsistentISBN, code)
		}
	}

	return &cachedLookup{Data: &book.EnrichmentData{
		Title:       strPtr(vol.Title),
		Subtitle:    strPtr(vol.Subtitle),
		Publisher:   strPtr(vol.Publisher),
		PublishDate: strPtr(vol.PublishedDate),
		Authors:     nonEmpty(vol.Authors),
	}}, nil
}

func (e *GoogleBooksEnricher) getHTTPClient() *http.Client {
	e.clientOnce.Do(func() {
		e.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	})
	return e.httpClient
}

func (e *GoogleBooksEnricher) getRateLimiter() *ratelimit.Limiter {
	e.limiterOnce.Do(func() {
		e.rateLimiter = newLimiter(e.Name(), googleBooksKey)
	})
	return e.rateLimiter
}
