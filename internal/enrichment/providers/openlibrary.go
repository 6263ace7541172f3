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
)

const (
	openLibraryKey      = "openlibrary"
	openLibraryBaseURL  = "https://openlibrary.org"
	openLibraryPriority = 1
)

// OpenLibraryEnricher implements the book.Enricher interface for OpenLibrary.
type OpenLibraryEnricher struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

// Compile-time check that OpenLibraryEnricher implements book.Enricher.
var _ book.Enricher = (*OpenLibraryEnricher)(nil)

// NewOpenLibraryEnricher creates a new OpenLibrary enricher.
func NewOpenLibraryEnricher() *OpenLibraryEnricher {
	return &OpenLibraryEnricher{}
}

// Name returns the human-readable name of this enricher.
func (e *OpenLibraryEnricher) Name() string {
	return "OpenLibrary"
}

// Priority returns the position in the fallback order (lower = tried first).
func (e *OpenLibraryEnricher) Priority() int {
	return openLibraryPriority
}

// Ping tests the connection to OpenLibrary.
func (e *OpenLibraryEnricher) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(openLibraryKey, openLibraryBaseURL), nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}

	resp, err := e.getHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("OpenLibrary ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(e.Name(), resp)
	}

	return nil
}

// Enrich fetches book data from OpenLibrary by ISBN.
func (e *OpenLibraryEnricher) Enrich(ctx context.Context, code string) (*book.EnrichmentData, error) {
	normalized, err := isbn.Validate(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", book.ErrInvalidISBN, err)
	}

	cached, err := lookup(ctx, "openlibrary_cache", normalized, func() (*cachedLookup, error) {
		return e.fetchFromAPI(ctx, normalized)
	})
	if err != nil {
		return nil, err
	}

	if cached.NotFound {
		return nil, nil // Not found is not an error, allows other enrichers to try
	}
	return cached.Data, nil
}

// openLibraryBookResponse matches the jscmd=data response structure.
type openLibraryBookResponse struct {
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	PublishDate string `json:"publish_date"`
}

func (e *OpenLibraryEnricher) fetchFromAPI(ctx context.Context, code string) (*cachedLookup, error) {
	if err := e.getRateLimiter().Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", baseURL(openLibraryKey, openLibraryBaseURL), code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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
	case http.StatusNotFound:
		return &cachedLookup{NotFound: true}, nil
	case http.StatusTooManyRequests:
		return nil, rateLimited(e.Name(), resp)
	default:
		return nil, unexpectedStatus(e.Name(), resp)
	}

	var result map[string]openLibraryBookResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(result) == 0 {
		return &cachedLookup{NotFound: true}, nil
	}

	olBook, ok := result["ISBN:"+code]
	if !ok {
		// Answered, but for some other key than the one we asked about.
		return nil, fmt.Errorf("OpenLibrary: %w: no entry for %s", book.ErrInconsistentISBN, code)
	}

	data := &book.EnrichmentData{
		Title:       strPtr(olBook.Title),
		Subtitle:    strPtr(olBook.Subtitle),
		PublishDate: strPtr(olBook.PublishDate),
	}
	if len(olBook.Publishers) > 0 {
		data.Publisher = strPtr(olBook.Publishers[0].Name)
	}

	authors := make([]string, 0, len(olBook.Authors))
	for _, author := range olBook.Authors {
		authors = append(authors, author.Name)
	}
	data.Authors = nonEmpty(authors)

	return &cachedLookup{Data: data}, nil
}

func (e *OpenLibraryEnricher) getHTTPClient() *http.Client {
	e.clientOnce.Do(func() {
		e.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	})
	return e.httpClient
}

func (e *OpenLibraryEnricher) getRateLimiter() *ratelimit.Limiter {
	e.limiterOnce.Do(func() {
		e.rateLimiter = newLimiter(e.Name(), openLibraryKey)
	})
	return e.rateLimiter
}
