package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func seedBooks(t *testing.T, c *Catalog, n int) []*Book {
	t.Helper()
	books := make([]*Book, n)
	for i := range books {
		books[i] = mustBook(t, c, BookData{Title: fmt.Sprintf("Book %02d", i)})
	}
	return books
}

func TestPaginate_FetchOneExtra(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	all := seedBooks(t, c, 7)

	tests := []struct {
		page, size int
		want       []int64
		more       bool
	}{
		{page: 0, size: 3, want: ids(all[0:3]), more: true},
		{page: 1, size: 3, want: ids(all[3:6]), more: true},
		{page: 2, size: 3, want: ids(all[6:7]), more: false},
		{page: 3, size: 3, want: []int64{}, more: false},
		{page: 0, size: 7, want: ids(all), more: false},
		{page: 0, size: 6, want: ids(all[0:6]), more: true},
		{page: 1, size: 6, want: ids(all[6:7]), more: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page=%d size=%d", tt.page, tt.size), func(t *testing.T) {
			page, err := Paginate(ctx, ListOptions{Page: tt.page, PageSize: tt.size}, c.Books)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ids(page.Items))
			assert.Equal(t, tt.more, page.More)
			assert.Equal(t, tt.page, page.Number)
			assert.Equal(t, tt.page > 0, page.HasPrev())
		})
	}
}

func TestPaginate_DefaultSize(t *testing.T) {
	c := newTestCatalog(t)
	seedBooks(t, c, DefaultPageSize+1)

	page, err := Paginate(context.Background(), ListOptions{}, c.Books)
	assert.NoError(t, err)
	assert.Equal(t, DefaultPageSize, len(page.Items))
	assert.True(t, page.More)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("Title DESC")
	assert.NoError(t, err)
	assert.Equal(t, Order{Column: "title", Desc: true}, o)

	o, err = ParseOrder("")
	assert.NoError(t, err)
	assert.Equal(t, "id asc", o.String())

	_, err = ParseOrder("title; DROP TABLE books")
	assert.IsError(t, err, ErrInvalidInput)
}

func TestBooks_SortAllowList(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "B"})
	a := mustBook(t, c, BookData{Title: "A"})
	cc := mustBook(t, c, BookData{Title: "C"})

	books, err := c.Books(ctx, ListOptions{Order: Order{Column: "title"}})
	assert.NoError(t, err)
	assert.Equal(t, []int64{a.ID(), b.ID(), cc.ID()}, ids(books))

	books, err = c.Books(ctx, ListOptions{Order: Order{Column: "title", Desc: true}})
	assert.NoError(t, err)
	assert.Equal(t, []int64{cc.ID(), b.ID(), a.ID()}, ids(books))

	_, err = c.Books(ctx, ListOptions{Order: Order{Column: "name"}})
	assert.IsError(t, err, ErrInvalidInput)

	_, err = c.Collections(ctx, ListOptions{Order: Order{Column: "title"}})
	assert.IsError(t, err, ErrInvalidInput)
}

func TestCollections_Listing(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for _, name := range []string{"Office", "Attic", "Kitchen"} {
		_, err := c.NewCollection(ctx, name)
		assert.NoError(t, err)
	}

	cols, err := c.Collections(ctx, ListOptions{Order: Order{Column: "name"}})
	assert.NoError(t, err)

	var names []string
	for _, col := range cols {
		name, err := col.Name(ctx)
		assert.NoError(t, err)
		names = append(names, name)
	}
	assert.Equal(t, []string{"Attic", "Kitchen", "Office"}, names)
}

func TestLentOut(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	mustBook(t, c, BookData{Title: "Home"})
	away := mustBook(t, c, BookData{Title: "Away"})
	_, err := away.Lend(ctx, "Bob")
	assert.NoError(t, err)

	books, err := c.LentOut(ctx, ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int64{away.ID()}, ids(books))
}

func TestSearch(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	dune := mustBook(t, c, BookData{Title: "Dune", Authors: "Herbert, Frank"})
	odyssey := mustBook(t, c, BookData{ISBN: "9780140447934", Title: "The Odyssey", Authors: "Homer"})
	percent := mustBook(t, c, BookData{Title: "100% Guide"})

	books, err := c.Search(ctx, "dUnE", ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int64{dune.ID()}, ids(books))

	books, err = c.Search(ctx, "homer", ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int64{odyssey.ID()}, ids(books))

	books, err = c.Search(ctx, "978014", ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int64{odyssey.ID()}, ids(books))

	// LIKE wildcards in the query are literal.
	books, err = c.Search(ctx, "%", ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []int64{percent.ID()}, ids(books))

	_, err = c.Search(ctx, "  ", ListOptions{})
	assert.IsError(t, err, ErrInvalidInput)
}
