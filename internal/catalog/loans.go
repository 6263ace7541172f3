package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Lend records a new loan to borrower. Lending a book that is already on
// loan fails with ErrAlreadyOnLoan and leaves the existing loan untouched.
func (b *Book) Lend(ctx context.Context, borrower string) (*Borrow, error) {
	borrower = strings.TrimSpace(borrower)
	if borrower == "" {
		return nil, fmt.Errorf("%w: borrower name is empty", ErrInvalidInput)
	}
	if err := b.data.ensure(ctx); err != nil {
		return nil, err
	}

	now := b.cat.now().UTC()

	tx, err := b.cat.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin lend: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT borrowed_to FROM books WHERE id = ?`, b.id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", b.id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read loan state of book %d: %w", b.id, err)
	}
	if current.Valid && current.String != "" {
		return nil, fmt.Errorf("book %d lent to %q: %w", b.id, current.String, ErrAlreadyOnLoan)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO borrows (book_id, lender, borrowed_at) VALUES (?, ?, ?)`, b.id, borrower, dbTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to record loan of book %d: %w", b.id, err)
	}
	borrowID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read borrow id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE books SET borrowed_to = ? WHERE id = ?`, borrower, b.id); err != nil {
		return nil, fmt.Errorf("failed to mark book %d on loan: %w", b.id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit loan of book %d: %w", b.id, err)
	}

	b.data.patch(func(d *BookData) { d.BorrowedTo = borrower })
	br := b.cat.Borrow(borrowID)
	br.data.set(BorrowData{BookID: b.id, Lender: borrower, BorrowedAt: now})

	slog.Info("Book lent", "id", b.id, "borrower", borrower)
	return br, nil
}

// Return makes the book available again, stamping returned_at on every open
// loan. Returning an available book is a no-op.
func (b *Book) Return(ctx context.Context) error {
	if err := b.data.ensure(ctx); err != nil {
		return err
	}

	now := b.cat.now().UTC()

	tx, err := b.cat.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin return: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	open, err := txIDs(ctx, tx, `SELECT id FROM borrows WHERE book_id = ? AND returned_at IS NULL`, b.id)
	if err != nil {
		return fmt.Errorf("failed to list open loans of book %d: %w", b.id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE borrows SET returned_at = ? WHERE book_id = ? AND returned_at IS NULL`, dbTime(now), b.id); err != nil {
		return fmt.Errorf("failed to close loans of book %d: %w", b.id, err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE books SET borrowed_to = NULL WHERE id = ?`, b.id)
	if err != nil {
		return fmt.Errorf("failed to clear borrower of book %d: %w", b.id, err)
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("book %d: %w", b.id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit return of book %d: %w", b.id, err)
	}

	b.data.patch(func(d *BookData) { d.BorrowedTo = "" })
	for _, id := range open {
		if br, ok := b.cat.borrows.peek(id); ok {
			br.data.patch(func(d *BorrowData) { d.ReturnedAt = now })
		}
	}

	if len(open) > 0 {
		slog.Info("Book returned", "id", b.id)
	}
	return nil
}

// ActiveBorrow returns the open loan of the book, nil when it is available,
// or ErrAmbiguousLoan when storage holds more than one open loan.
func (b *Book) ActiveBorrow(ctx context.Context) (*Borrow, error) {
	if err := b.data.ensure(ctx); err != nil {
		return nil, err
	}

	ids, err := b.cat.queryIDs(ctx,
		`SELECT id FROM borrows WHERE book_id = ? AND returned_at IS NULL ORDER BY id`, b.id)
	if err != nil {
		return nil, fmt.Errorf("failed to query open loans of book %d: %w", b.id, err)
	}

	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
		return b.cat.Borrow(ids[0]), nil
	default:
		return nil, fmt.Errorf("book %d has %d open loans: %w", b.id, len(ids), ErrAmbiguousLoan)
	}
}

// Loans returns the loan history of the book, newest first.
func (b *Book) Loans(ctx context.Context) ([]*Borrow, error) {
	if err := b.data.ensure(ctx); err != nil {
		return nil, err
	}

	ids, err := b.cat.queryIDs(ctx,
		`SELECT id FROM borrows WHERE book_id = ? ORDER BY borrowed_at DESC, id DESC`, b.id)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans of book %d: %w", b.id, err)
	}

	loans := make([]*Borrow, len(ids))
	for i, id := range ids {
		loans[i] = b.cat.Borrow(id)
	}
	return loans, nil
}
