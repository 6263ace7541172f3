package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BorrowData is the in-memory copy of a borrows row.
type BorrowData struct {
	BookID     int64
	Lender     string
	BorrowedAt time.Time
	ReturnedAt time.Time
}

// Active reports whether the loan is still open.
func (d BorrowData) Active() bool {
	return d.ReturnedAt.IsZero()
}

// Borrow is one loan of a book. Rows are never deleted except together
// with their book.
type Borrow struct {
	id   int64
	cat  *Catalog
	data lazy[BorrowData]
}

// Borrow returns the handle for id. No storage access happens until a
// field is read.
func (c *Catalog) Borrow(id int64) *Borrow {
	return c.borrows.get(id, func() *Borrow {
		br := &Borrow{id: id, cat: c}
		br.data.load = br.load
		return br
	})
}

func (br *Borrow) load(ctx context.Context) (BorrowData, error) {
	var (
		bookID               sql.NullInt64
		lender               sql.NullString
		borrowedAt, returned nullTime
	)
	err := br.cat.db.QueryRowContext(ctx,
		`SELECT book_id, lender, borrowed_at, returned_at FROM borrows WHERE id = ?`, br.id,
	).Scan(&bookID, &lender, &borrowedAt, &returned)
	if errors.Is(err, sql.ErrNoRows) {
		return BorrowData{}, fmt.Errorf("borrow %d: %w", br.id, ErrNotFound)
	}
	if err != nil {
		return BorrowData{}, fmt.Errorf("failed to load borrow %d: %w", br.id, err)
	}
	return BorrowData{
		BookID:     bookID.Int64,
		Lender:     lender.String,
		BorrowedAt: borrowedAt.Time,
		ReturnedAt: returned.Time,
	}, nil
}

// ID returns the row id.
func (br *Borrow) ID() int64 {
	return br.id
}

// Data returns a snapshot of the whole row.
func (br *Borrow) Data(ctx context.Context) (BorrowData, error) {
	return br.data.read(ctx)
}

func (br *Borrow) Lender(ctx context.Context) (string, error) {
	return field(ctx, &br.data, func(d *BorrowData) string { return d.Lender })
}

func (br *Borrow) Active(ctx context.Context) (bool, error) {
	return field(ctx, &br.data, func(d *BorrowData) bool { return d.Active() })
}

// Book returns the lent book.
func (br *Borrow) Book(ctx context.Context) (*Book, error) {
	id, err := field(ctx, &br.data, func(d *BorrowData) int64 { return d.BookID })
	if err != nil {
		return nil, err
	}
	return br.cat.Book(id), nil
}

// ReturnNow stamps returned_at on this loan and, once no other loan of the
// book is open, clears the book's borrower. Returning a closed loan is a
// no-op.
func (br *Borrow) ReturnNow(ctx context.Context) error {
	d, err := br.data.read(ctx)
	if err != nil {
		return err
	}
	if !d.Active() {
		return nil
	}

	now := br.cat.now().UTC()

	tx, err := br.cat.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin return: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE borrows SET returned_at = ? WHERE id = ? AND returned_at IS NULL`, dbTime(now), br.id)
	if err != nil {
		return fmt.Errorf("failed to return borrow %d: %w", br.id, err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		// Closed concurrently; reload on next access.
		br.data.reset()
		return nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE books SET borrowed_to = NULL
		WHERE id = ? AND NOT EXISTS (
			SELECT 1 FROM borrows WHERE book_id = ? AND returned_at IS NULL
		)`, d.BookID, d.BookID)
	if err != nil {
		return fmt.Errorf("failed to clear borrower of book %d: %w", d.BookID, err)
	}
	cleared, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit return of borrow %d: %w", br.id, err)
	}

	br.data.patch(func(cur *BorrowData) { cur.ReturnedAt = now })
	if cleared {
		if b, ok := br.cat.books.peek(d.BookID); ok {
			b.data.patch(func(cur *BookData) { cur.BorrowedTo = "" })
		}
	}
	return nil
}
