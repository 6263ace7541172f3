package catalog

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/ook/internal/datastore"
	"github.com/lepinkainen/ook/internal/enrichment/book"
	"github.com/lepinkainen/ook/internal/testutil"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// stepClock returns a time one minute later on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	env := testutil.NewTestEnv(t)
	db, err := datastore.Open(env.Path("ook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = datastore.Migrate(context.Background(), db)
	require.NoError(t, err)
	return db
}

func newTestCatalog(t *testing.T, opts ...Option) *Catalog {
	t.Helper()

	clock := &stepClock{t: epoch}
	return New(openTestDB(t), append([]Option{WithClock(clock.now)}, opts...)...)
}

// stubMetadata answers every lookup with result, err.
type stubMetadata struct {
	result *book.EnricherResult
	err    error
	calls  int
	fresh  []bool
}

func (s *stubMetadata) Lookup(ctx context.Context, _ string) (*book.EnricherResult, error) {
	s.calls++
	s.fresh = append(s.fresh, book.IsFreshLookup(ctx))
	return s.result, s.err
}

func strPtr(s string) *string { return &s }

func mustBook(t *testing.T, c *Catalog, data BookData) *Book {
	t.Helper()
	b, err := c.NewBook(context.Background(), data)
	require.NoError(t, err)
	return b
}

func ids[T interface{ ID() int64 }](items []T) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID()
	}
	return out
}

func TestSelectIDs_DBAndTx(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	a := mustBook(t, c, BookData{Title: "A"})
	b := mustBook(t, c, BookData{Title: "B"})
	want := []int64{a.ID(), b.ID()}

	got, err := c.queryIDs(ctx, `SELECT id FROM books ORDER BY id`)
	require.NoError(t, err)
	require.Equal(t, want, got)

	tx, err := c.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	got, err = txIDs(ctx, tx, `SELECT id FROM books WHERE title = ?`, "B")
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID()}, got)

	_, err = txIDs(ctx, tx, `SELECT id FROM no_such_table`)
	require.Error(t, err)
}
