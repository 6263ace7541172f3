package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBook_ValidatesISBN(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.NewBook(context.Background(), BookData{ISBN: "12345"})
	require.ErrorIs(t, err, ErrInvalidInput)

	b := mustBook(t, c, BookData{ISBN: "0-8044-2957-X"})
	code, err := b.ISBN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9780804429573", code)
}

func TestEditAndSave(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Draft"})
	require.NoError(t, b.Edit(ctx, func(d *BookData) {
		d.Title = "  Final  "
		d.Authors = "Le Guin, Ursula K."
		d.Year = 1969
	}))

	// Edits stay in memory until saved.
	var stored string
	require.NoError(t, c.DB().QueryRow(`SELECT title FROM books WHERE id = ?`, b.ID()).Scan(&stored))
	assert.Equal(t, "Draft", stored)

	require.NoError(t, b.Save(ctx))

	var year int
	require.NoError(t, c.DB().QueryRow(`SELECT title, year FROM books WHERE id = ?`, b.ID()).Scan(&stored, &year))
	assert.Equal(t, "Final", stored)
	assert.Equal(t, 1969, year)

	title, err := b.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Final", title)
}

func TestSave_InvalidDiscardsEdits(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Kept"})
	require.NoError(t, b.Edit(ctx, func(d *BookData) {
		d.Title = "Lost"
		d.ISBN = "not-an-isbn"
	}))

	require.ErrorIs(t, b.Save(ctx), ErrInvalidInput)

	title, err := b.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kept", title)
}

func TestSave_MissingRow(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Ghost"})
	_, err := c.DB().Exec(`DELETE FROM books WHERE id = ?`, b.ID())
	require.NoError(t, err)

	require.ErrorIs(t, b.Save(ctx), ErrNotFound)
}

func TestRename(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{})
	require.NoError(t, b.Rename(ctx, "Named"))
	require.ErrorIs(t, b.Rename(ctx, "   "), ErrInvalidInput)

	c.books.evict(b.ID())
	title, err := c.Book(b.ID()).Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Named", title)

	require.ErrorIs(t, c.Book(999).Rename(ctx, "x"), ErrNotFound)
}

func TestCollection_ListsTitlelessBook(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	office, err := c.NewCollection(ctx, "Office")
	require.NoError(t, err)
	other, err := c.NewCollection(ctx, "Attic")
	require.NoError(t, err)

	b := mustBook(t, c, BookData{ISBN: "9780140447934", CollectionID: office.ID()})
	mustBook(t, c, BookData{Title: "Elsewhere", CollectionID: other.ID()})

	books, err := office.Books(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Same(t, b, books[0])

	title, err := books[0].Title(ctx)
	require.NoError(t, err)
	assert.Empty(t, title)

	col, err := books[0].Collection(ctx)
	require.NoError(t, err)
	assert.Same(t, office, col)
}

func TestCollection_RenameAndAddBook(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.NewCollection(ctx, " ")
	require.ErrorIs(t, err, ErrInvalidInput)

	col, err := c.NewCollection(ctx, "Study")
	require.NoError(t, err)
	require.NoError(t, col.Rename(ctx, "Library"))

	c.collections.evict(col.ID())
	name, err := c.Collection(col.ID()).Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Library", name)

	b := mustBook(t, c, BookData{Title: "Loose"})
	none, err := b.Collection(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, c.Collection(col.ID()).AddBook(ctx, b))
	books, err := c.Collection(col.ID()).Books(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID()}, ids(books))

	require.ErrorIs(t, c.Collection(404).AddBook(ctx, b), ErrNotFound)
	require.ErrorIs(t, c.Collection(404).Rename(ctx, "x"), ErrNotFound)
}

func TestDelete(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	col, err := c.NewCollection(ctx, "Office")
	require.NoError(t, err)
	keep := mustBook(t, c, BookData{Title: "Keep", CollectionID: col.ID()})
	gone := mustBook(t, c, BookData{Title: "Gone", CollectionID: col.ID()})
	loan, err := gone.Lend(ctx, "Ann")
	require.NoError(t, err)

	require.NoError(t, gone.Delete(ctx))

	books, err := col.Books(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{keep.ID()}, ids(books))

	_, cached := c.books.peek(gone.ID())
	assert.False(t, cached)
	_, cached = c.borrows.peek(loan.ID())
	assert.False(t, cached)

	fresh := c.Book(gone.ID())
	assert.NotSame(t, gone, fresh)
	_, err = fresh.Title(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	// The stale handle no longer serves the deleted row either.
	_, err = gone.Title(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	var borrows int
	require.NoError(t, c.DB().QueryRow(`SELECT COUNT(*) FROM borrows`).Scan(&borrows))
	assert.Zero(t, borrows)

	require.ErrorIs(t, fresh.Delete(ctx), ErrNotFound)
}
