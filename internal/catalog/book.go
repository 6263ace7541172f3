package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/ook/internal/isbn"
)

// BookData is the in-memory copy of a books row. Empty strings, a zero Year,
// zero times and a zero CollectionID are stored as NULL.
type BookData struct {
	ISBN         string
	Title        string
	Authors      string
	Publisher    string
	Year         int
	CreatedAt    time.Time
	ImportedAt   time.Time
	DataSource   string
	BorrowedTo   string
	CollectionID int64
}

// OnLoan reports whether the book is lent out.
func (d BookData) OnLoan() bool {
	return d.BorrowedTo != ""
}

// Book is one physical book.
type Book struct {
	id   int64
	cat  *Catalog
	data lazy[BookData]
}

const bookColumns = `isbn, title, authors, publisher, year, created_at, imported_at, data_source, borrowed_to, collection_id`

// Book returns the handle for id. No storage access happens until a field
// is read.
func (c *Catalog) Book(id int64) *Book {
	return c.books.get(id, func() *Book {
		b := &Book{id: id, cat: c}
		b.data.load = b.load
		return b
	})
}

// NewBook inserts a book built from data. A non-empty ISBN is validated and
// stored in ISBN-13 form. CreatedAt defaults to now.
func (c *Catalog) NewBook(ctx context.Context, data BookData) (*Book, error) {
	if err := normalizeBook(&data); err != nil {
		return nil, err
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = c.now().UTC()
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bookArgs(data)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read book id: %w", err)
	}

	b := c.Book(id)
	b.data.set(data)
	slog.Debug("Book created", "id", id, "isbn", data.ISBN)
	return b, nil
}

// NewBookFromISBN validates code, inserts a book for it and then imports its
// metadata. Insert and import are separate commits: when no source has data
// or the lookup fails, the book is kept with only its ISBN set.
func (c *Catalog) NewBookFromISBN(ctx context.Context, code string, collectionID int64) (*Book, error) {
	normalized, err := isbn.Validate(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	b, err := c.NewBook(ctx, BookData{ISBN: normalized, CollectionID: collectionID})
	if err != nil {
		return nil, err
	}

	if _, err := b.ImportMetadata(ctx); err != nil {
		slog.Warn("Metadata import failed, keeping bare book", "id", b.id, "isbn", normalized, "error", err)
	}
	return b, nil
}

func normalizeBook(d *BookData) error {
	d.Title = strings.TrimSpace(d.Title)
	d.Authors = strings.TrimSpace(d.Authors)
	d.Publisher = strings.TrimSpace(d.Publisher)
	if d.Year < 0 {
		return fmt.Errorf("%w: year %d", ErrInvalidInput, d.Year)
	}
	if d.ISBN == "" {
		return nil
	}
	normalized, err := isbn.Validate(d.ISBN)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	d.ISBN = normalized
	return nil
}

func bookArgs(d BookData) []any {
	return []any{
		dbString(d.ISBN),
		dbString(d.Title),
		dbString(d.Authors),
		dbString(d.Publisher),
		dbInt(int64(d.Year)),
		dbTime(d.CreatedAt),
		dbTime(d.ImportedAt),
		dbString(d.DataSource),
		dbString(d.BorrowedTo),
		dbInt(d.CollectionID),
	}
}

func (b *Book) load(ctx context.Context) (BookData, error) {
	var (
		code, title, authors, publisher, source, borrowedTo sql.NullString
		year, collectionID                                  sql.NullInt64
		createdAt, importedAt                               nullTime
	)
	err := b.cat.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, b.id,
	).Scan(&code, &title, &authors, &publisher, &year, &createdAt, &importedAt, &source, &borrowedTo, &collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return BookData{}, fmt.Errorf("book %d: %w", b.id, ErrNotFound)
	}
	if err != nil {
		return BookData{}, fmt.Errorf("failed to load book %d: %w", b.id, err)
	}

	return BookData{
		ISBN:         code.String,
		Title:        title.String,
		Authors:      authors.String,
		Publisher:    publisher.String,
		Year:         int(year.Int64),
		CreatedAt:    createdAt.Time,
		ImportedAt:   importedAt.Time,
		DataSource:   source.String,
		BorrowedTo:   borrowedTo.String,
		CollectionID: collectionID.Int64,
	}, nil
}

// ID returns the row id.
func (b *Book) ID() int64 {
	return b.id
}

// Data returns a snapshot of the whole row.
func (b *Book) Data(ctx context.Context) (BookData, error) {
	return b.data.read(ctx)
}

func (b *Book) ISBN(ctx context.Context) (string, error) {
	return field(ctx, &b.data, func(d *BookData) string { return d.ISBN })
}

func (b *Book) Title(ctx context.Context) (string, error) {
	return field(ctx, &b.data, func(d *BookData) string { return d.Title })
}

func (b *Book) Authors(ctx context.Context) (string, error) {
	return field(ctx, &b.data, func(d *BookData) string { return d.Authors })
}

func (b *Book) Publisher(ctx context.Context) (string, error) {
	return field(ctx, &b.data, func(d *BookData) string { return d.Publisher })
}

func (b *Book) Year(ctx context.Context) (int, error) {
	return field(ctx, &b.data, func(d *BookData) int { return d.Year })
}

func (b *Book) CreatedAt(ctx context.Context) (time.Time, error) {
	return field(ctx, &b.data, func(d *BookData) time.Time { return d.CreatedAt })
}

// ImportedAt is zero until a metadata import succeeded.
func (b *Book) ImportedAt(ctx context.Context) (time.Time, error) {
	return field(ctx, &b.data, func(d *BookData) time.Time { return d.ImportedAt })
}

func (b *Book) DataSource(ctx context.Context) (string, error) {
	return field(ctx, &b.data, func(d *BookData) string { return d.DataSource })
}

// BorrowedTo is the borrower's name, empty when the book is available.
func (b *Book) BorrowedTo(ctx context.Context) (string, error) {
	return field(ctx, &b.data, func(d *BookData) string { return d.BorrowedTo })
}

func (b *Book) OnLoan(ctx context.Context) (bool, error) {
	return field(ctx, &b.data, func(d *BookData) bool { return d.OnLoan() })
}

// Collection returns the collection holding the book, or nil.
func (b *Book) Collection(ctx context.Context) (*Collection, error) {
	id, err := field(ctx, &b.data, func(d *BookData) int64 { return d.CollectionID })
	if err != nil || id == 0 {
		return nil, err
	}
	return b.cat.Collection(id), nil
}

// Edit changes the in-memory copy. Nothing reaches storage until Save.
func (b *Book) Edit(ctx context.Context, fn func(*BookData)) error {
	return b.data.edit(ctx, fn)
}

// Save writes the in-memory copy to storage. Loan state is owned by Lend and
// Return and is not written here. If the edited data is invalid the unsaved
// edits are discarded and the next access reloads the stored row.
func (b *Book) Save(ctx context.Context) error {
	d, err := b.data.read(ctx)
	if err != nil {
		return err
	}
	if err := normalizeBook(&d); err != nil {
		b.data.reset()
		return err
	}

	res, err := b.cat.db.ExecContext(ctx, `
		UPDATE books SET
			isbn = ?, title = ?, authors = ?, publisher = ?, year = ?,
			imported_at = ?, data_source = ?, collection_id = ?
		WHERE id = ?`,
		dbString(d.ISBN), dbString(d.Title), dbString(d.Authors), dbString(d.Publisher), dbInt(int64(d.Year)),
		dbTime(d.ImportedAt), dbString(d.DataSource), dbInt(d.CollectionID),
		b.id,
	)
	if err != nil {
		return fmt.Errorf("failed to save book %d: %w", b.id, err)
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("book %d: %w", b.id, ErrNotFound)
	}

	b.data.patch(func(cur *BookData) {
		cur.ISBN = d.ISBN
		cur.Title = d.Title
		cur.Authors = d.Authors
		cur.Publisher = d.Publisher
	})
	return nil
}

// Rename writes the new title to storage immediately.
func (b *Book) Rename(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidInput)
	}
	if err := b.data.ensure(ctx); err != nil {
		return err
	}

	res, err := b.cat.db.ExecContext(ctx, `UPDATE books SET title = ? WHERE id = ?`, title, b.id)
	if err != nil {
		return fmt.Errorf("failed to rename book %d: %w", b.id, err)
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("book %d: %w", b.id, ErrNotFound)
	}

	b.data.patch(func(d *BookData) { d.Title = title })
	return nil
}

// Delete removes the book and its loan history and drops the handles from
// the identity maps. A later Catalog.Book(id) yields a fresh placeholder
// whose first access fails with ErrNotFound.
func (b *Book) Delete(ctx context.Context) error {
	tx, err := b.cat.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	borrowIDs, err := txIDs(ctx, tx, `SELECT id FROM borrows WHERE book_id = ?`, b.id)
	if err != nil {
		return fmt.Errorf("failed to list loans of book %d: %w", b.id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM borrows WHERE book_id = ?`, b.id); err != nil {
		return fmt.Errorf("failed to delete loans of book %d: %w", b.id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, b.id)
	if err != nil {
		return fmt.Errorf("failed to delete book %d: %w", b.id, err)
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("book %d: %w", b.id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of book %d: %w", b.id, err)
	}

	for _, id := range borrowIDs {
		if br, ok := b.cat.borrows.peek(id); ok {
			br.data.reset()
		}
		b.cat.borrows.evict(id)
	}
	b.cat.books.evict(b.id)
	b.data.reset()

	slog.Info("Book deleted", "id", b.id)
	return nil
}
