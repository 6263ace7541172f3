package catalog

import "context"

// Page is one page of a listing. Number is zero-based.
type Page[T any] struct {
	Items  []T
	Number int
	Size   int
	More   bool
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool {
	return p.Number > 0
}

// Paginate runs list for one page, asking for one extra row to learn
// whether another page follows. The extra row is dropped from Items.
func Paginate[T any](ctx context.Context, opts ListOptions, list func(context.Context, ListOptions) ([]T, error)) (Page[T], error) {
	opts.lookahead = true

	items, err := list(ctx, opts)
	if err != nil {
		return Page[T]{}, err
	}

	page := Page[T]{Number: opts.page(), Size: opts.size()}
	if len(items) > page.Size {
		items = items[:page.Size]
		page.More = true
	}
	page.Items = items
	return page, nil
}
