package catalog

import "errors"

var (
	// ErrNotFound is returned on first access of a record whose row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed ISBNs, unknown sort columns
	// and blank names, before any storage or network call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyOnLoan is returned when lending a book that is already lent out.
	ErrAlreadyOnLoan = errors.New("book is already on loan")

	// ErrAmbiguousLoan is returned when a book has more than one open loan.
	ErrAmbiguousLoan = errors.New("book has more than one open loan")
)
