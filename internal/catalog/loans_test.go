package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLendThenReturn(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Dune"})

	loan, err := b.Lend(ctx, "  Ann  ")
	require.NoError(t, err)

	onLoan, err := b.OnLoan(ctx)
	require.NoError(t, err)
	assert.True(t, onLoan)
	borrower, err := b.BorrowedTo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", borrower)

	active, err := b.ActiveBorrow(ctx)
	require.NoError(t, err)
	assert.Same(t, loan, active)

	require.NoError(t, b.Return(ctx))

	onLoan, err = b.OnLoan(ctx)
	require.NoError(t, err)
	assert.False(t, onLoan)

	var stored *string
	require.NoError(t, c.DB().QueryRow(`SELECT borrowed_to FROM books WHERE id = ?`, b.ID()).Scan(&stored))
	assert.Nil(t, stored)

	loans, err := b.Loans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	data, err := loans[0].Data(ctx)
	require.NoError(t, err)
	assert.False(t, data.Active())
	assert.Equal(t, "Ann", data.Lender)
	assert.True(t, data.ReturnedAt.After(data.BorrowedAt))

	active, err = b.ActiveBorrow(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestLend_RejectsDoubleLend(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Dune"})
	_, err := b.Lend(ctx, "Ann")
	require.NoError(t, err)

	_, err = b.Lend(ctx, "Bob")
	require.ErrorIs(t, err, ErrAlreadyOnLoan)

	borrower, err := b.BorrowedTo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", borrower)

	var open int
	require.NoError(t, c.DB().QueryRow(
		`SELECT COUNT(*) FROM borrows WHERE book_id = ? AND returned_at IS NULL`, b.ID()).Scan(&open))
	assert.Equal(t, 1, open)
}

func TestLend_Validation(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Dune"})
	_, err := b.Lend(ctx, " ")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Book(404).Lend(ctx, "Ann")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReturn_AvailableIsNoop(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Dune"})
	require.NoError(t, b.Return(ctx))

	loans, err := b.Loans(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)

	require.ErrorIs(t, c.Book(404).Return(ctx), ErrNotFound)
}

func TestActiveBorrow_Ambiguous(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Dune"})
	// Legacy data can hold two open rows for one book.
	_, err := c.DB().Exec(`INSERT INTO borrows (book_id, lender) VALUES (?, 'Ann'), (?, 'Bob')`, b.ID(), b.ID())
	require.NoError(t, err)

	_, err = b.ActiveBorrow(ctx)
	require.ErrorIs(t, err, ErrAmbiguousLoan)

	// Return closes every open row.
	require.NoError(t, b.Return(ctx))
	active, err := b.ActiveBorrow(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestLoans_NewestFirst(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Dune"})
	first, err := b.Lend(ctx, "Ann")
	require.NoError(t, err)
	require.NoError(t, b.Return(ctx))
	second, err := b.Lend(ctx, "Bob")
	require.NoError(t, err)

	loans, err := b.Loans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{second.ID(), first.ID()}, ids(loans))

	firstData, err := first.Data(ctx)
	require.NoError(t, err)
	assert.False(t, firstData.Active())
}

func TestBorrow_ReturnNow(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	b := mustBook(t, c, BookData{Title: "Dune"})
	loan, err := b.Lend(ctx, "Ann")
	require.NoError(t, err)

	// Drop the cached borrow so ReturnNow has to load it.
	c.borrows.evict(loan.ID())
	fresh := c.Borrow(loan.ID())

	lent, err := fresh.Book(ctx)
	require.NoError(t, err)
	assert.Same(t, b, lent)

	require.NoError(t, fresh.ReturnNow(ctx))

	active, err := fresh.Active(ctx)
	require.NoError(t, err)
	assert.False(t, active)

	onLoan, err := b.OnLoan(ctx)
	require.NoError(t, err)
	assert.False(t, onLoan)

	// Second return is a no-op.
	require.NoError(t, fresh.ReturnNow(ctx))
}
