package cache

// SQL schemas for provider response cache tables.
// All cache tables use "cache_key" as the primary key column and store the
// absolute expiry as unix seconds so entries can carry their own TTL.

// OpenLibraryCacheSchema defines the schema for OpenLibrary lookups
const OpenLibraryCacheSchema = `
CREATE TABLE IF NOT EXISTS openlibrary_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_openlibrary_expires_at ON openlibrary_cache(expires_at);
`

// GoogleBooksCacheSchema defines the schema for Google Books lookups
const GoogleBooksCacheSchema = `
CREATE TABLE IF NOT EXISTS googlebooks_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_googlebooks_expires_at ON googlebooks_cache(expires_at);
`

// ISBNdbCacheSchema defines the schema for ISBNdb lookups
const ISBNdbCacheSchema = `
CREATE TABLE IF NOT EXISTS isbndb_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_isbndb_expires_at ON isbndb_cache(expires_at);
`

// AllCacheSchemas contains every cache table schema, created on first use
var AllCacheSchemas = []string{
	OpenLibraryCacheSchema,
	GoogleBooksCacheSchema,
	ISBNdbCacheSchema,
}

// ValidCacheTableNames is the whitelist of table names accepted by CacheDB
var ValidCacheTableNames = map[string]bool{
	"openlibrary_cache": true,
	"googlebooks_cache": true,
	"isbndb_cache":      true,
}

// SourceTable maps a provider name to its cache table.
func SourceTable(source string) (string, bool) {
	table := source + "_cache"
	return table, ValidCacheTableNames[table]
}
