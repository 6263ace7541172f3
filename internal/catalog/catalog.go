// Package catalog is the entity layer of the home library. Every row of the
// collections, books and borrows tables is represented by exactly one
// handle per process; handles are cheap placeholders until a field is read,
// at which point the whole row is loaded.
package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/lepinkainen/ook/internal/enrichment/book"
)

// MetadataSource resolves an ISBN into bibliographic data. *book.Resolver
// implements it. A nil result with a nil error means no source had data.
type MetadataSource interface {
	Lookup(ctx context.Context, isbn string) (*book.EnricherResult, error)
}

// Catalog owns the database handle and the identity map of each record type.
type Catalog struct {
	db          *sql.DB
	collections *identityMap[Collection]
	books       *identityMap[Book]
	borrows     *identityMap[Borrow]
	now         func() time.Time
	metadata    MetadataSource
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

// WithMetadata sets the source used by ImportMetadata and NewBookFromISBN.
func WithMetadata(src MetadataSource) Option {
	return func(c *Catalog) {
		c.metadata = src
	}
}

// New creates a catalog over a migrated database.
func New(db *sql.DB, opts ...Option) *Catalog {
	c := &Catalog{
		db:          db,
		collections: newIdentityMap[Collection](),
		books:       newIdentityMap[Book](),
		borrows:     newIdentityMap[Borrow](),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB returns the underlying database handle.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryIDs runs a query selecting a single id column.
func (c *Catalog) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	return selectIDs(ctx, c.db, query, args...)
}

// txIDs is queryIDs inside a transaction. With a single pooled connection
// the transaction must not be bypassed.
func txIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	return selectIDs(ctx, tx, query, args...)
}

func selectIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
