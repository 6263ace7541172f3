package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/lepinkainen/ook/internal/enrichment/book"
	"github.com/lepinkainen/ook/internal/isbn"
	"github.com/lepinkainen/ook/internal/ratelimit"
	"github.com/spf13/viper"
)

const (
	isbndbKey      = "isbndb"
	isbndbBaseURL  = "https://api2.isbndb.com"
	isbndbPriority = 0 // Highest priority - most comprehensive data
)

// ISBNdbEnricher implements the book.Enricher interface for ISBNdb API.
type ISBNdbEnricher struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

// Compile-time check that ISBNdbEnricher implements book.Enricher.
var _ book.Enricher = (*ISBNdbEnricher)(nil)

// NewISBNdbEnricher creates a new ISBNdb enricher.
func NewISBNdbEnricher() *ISBNdbEnricher {
	return &ISBNdbEnricher{}
}

// Name returns the human-readable name of this enricher.
func (e *ISBNdbEnricher) Name() string {
	return "ISBNdb"
}

// Priority returns the position in the fallback order (lower = tried first).
func (e *ISBNdbEnricher) Priority() int {
	return isbndbPriority
}

// Ping tests the connection to ISBNdb API.
func (e *ISBNdbEnricher) Ping(ctx context.Context) error {
	apiKey := e.getAPIKey()
	if apiKey == "" {
		return fmt.Errorf("ISBNdb API key not configured")
	}

	// Test with a well-known ISBN
	url := fmt.Sprintf("%s/book/9780140447934", baseURL(isbndbKey, isbndbBaseURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := e.getHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("ISBNdb ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("ISBNdb API key invalid")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return unexpectedStatus(e.Name(), resp)
	}

	return nil
}

// Enrich fetches book data from ISBNdb API by ISBN.
func (e *ISBNdbEnricher) Enrich(ctx context.Context, code string) (*book.EnrichmentData, error) {
	normalized, err := isbn.Validate(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", book.ErrInvalidISBN, err)
	}

	apiKey := e.getAPIKey()
	if apiKey == "" {
		// No API key - skip this enricher silently
		return nil, nil
	}

	cached, err := lookup(ctx, "isbndb_cache", normalized, func() (*cachedLookup, error) {
		return e.fetchFromAPI(ctx, normalized, apiKey)
	})
	if err != nil {
		return nil, err
	}

	if cached.NotFound {
		return nil, nil
	}
	return cached.Data, nil
}

// isbndbBookResponse matches the ISBNdb API response structure.
type isbndbBookResponse struct {
	Book struct {
		Title         string   `json:"title"`
		TitleLong     string   `json:"title_long"`
		ISBN          string   `json:"isbn"`
		ISBN13        string   `json:"isbn13"`
		Publisher     string   `json:"publisher"`
		DatePublished string   `json:"date_published"`
		Authors       []string `json:"authors"`
	} `json:"book"`
}

func (e *ISBNdbEnricher) fetchFromAPI(ctx context.Context, code, apiKey string) (*cachedLookup, error) {
	if err := e.getRateLimiter().Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/book/%s", baseURL(isbndbKey, isbndbBaseURL), code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := e.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return &cachedLookup{NotFound: true}, nil
	case http.StatusBadRequest:
		// ISBNdb answers 400 for identifiers its own validation rejects.
		return nil, fmt.Errorf("ISBNdb: %w: %s", book.ErrInconsistentISBN, code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("ISBNdb API key invalid or expired")
	case http.StatusTooManyRequests:
		return nil, rateLimited(e.Name(), resp)
	default:
		return nil, unexpectedStatus(e.Name(), resp)
	}

	var result isbndbBookResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	b := result.Book
	if b.Title == "" && b.ISBN == "" && b.ISBN13 == "" {
		return &cachedLookup{NotFound: true}, nil
	}
	if b.ISBN13 != "" && !isbn.Equal(b.ISBN13, code) {
		return nil, fmt.Errorf("ISBNdb: %w: asked for %s, got %s", book.ErrInconsistentISBN, code, b.ISBN13)
	}

	title := b.Title
	if title == "" {
		title = b.TitleLong
	}

	return &cachedLookup{Data: &book.EnrichmentData{
		Title:       strPtr(title),
		Publisher:   strPtr(b.Publisher),
		PublishDate: strPtr(b.DatePublished),
		Authors:     nonEmpty(b.Authors),
	}}, nil
}

func (e *ISBNdbEnricher) getHTTPClient() *http.Client {
	e.clientOnce.Do(func() {
		e.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	})
	return e.httpClient
}

func (e *ISBNdbEnricher) getRateLimiter() *ratelimit.Limiter {
	e.limiterOnce.Do(func() {
		// Free tier: 1 request per second
		e.rateLimiter = newLimiter(e.Name(), isbndbKey)
	})
	return e.rateLimiter
}

func (e *ISBNdbEnricher) getAPIKey() string {
	return viper.GetString("isbndb.api_key")
}
