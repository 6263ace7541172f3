package book

// EnricherResult represents the data fetched from a single Enricher.
type EnricherResult struct {
	// Data is the book metadata extracted from the source.
	Data *EnrichmentData

	// Source is the human-readable name of the source.
	Source string

	// Priority is the position of the source in the fallback order.
	Priority int
}
