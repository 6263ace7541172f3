package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// DefaultPageSize is used when ListOptions.PageSize is not positive.
const DefaultPageSize = 20

// Order is a sort column and direction.
type Order struct {
	Column string
	Desc   bool
}

var orderPattern = regexp.MustCompile(`^([a-z_]+)(?:\s+(asc|desc))?$`)

// ParseOrder reads "column", "column asc" or "column desc". An empty string
// is the default id order. Whether the column exists is checked by the
// listing that uses it.
func ParseOrder(s string) (Order, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Order{Column: "id"}, nil
	}
	m := orderPattern.FindStringSubmatch(s)
	if m == nil {
		return Order{}, fmt.Errorf("%w: sort order %q", ErrInvalidInput, s)
	}
	return Order{Column: m[1], Desc: m[2] == "desc"}, nil
}

func (o Order) String() string {
	col := o.Column
	if col == "" {
		col = "id"
	}
	if o.Desc {
		return col + " desc"
	}
	return col + " asc"
}

var (
	bookSortColumns = map[string]bool{
		"id": true, "isbn": true, "title": true, "authors": true, "publisher": true, "year": true,
		"created_at": true, "imported_at": true, "borrowed_to": true, "collection_id": true,
	}
	collectionSortColumns = map[string]bool{"id": true, "name": true}
)

// clause renders ORDER BY for an allow-listed column, with id as tiebreak.
func (o Order) clause(allowed map[string]bool) (string, error) {
	col := o.Column
	if col == "" {
		col = "id"
	}
	if !allowed[col] {
		return "", fmt.Errorf("%w: cannot sort by %q", ErrInvalidInput, col)
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	if col == "id" {
		return "ORDER BY id " + dir, nil
	}
	return fmt.Sprintf("ORDER BY %s %s, id ASC", col, dir), nil
}

// ListOptions selects one page of a listing. Page is zero-based.
type ListOptions struct {
	Order        Order
	Page         int
	PageSize     int
	CollectionID int64

	// lookahead asks for one row past the page; set by Paginate.
	lookahead bool
}

func (o ListOptions) size() int {
	if o.PageSize <= 0 {
		return DefaultPageSize
	}
	return o.PageSize
}

func (o ListOptions) page() int {
	if o.Page < 0 {
		return 0
	}
	return o.Page
}

// limits returns LIMIT and OFFSET. The offset never includes the lookahead row.
func (o ListOptions) limits() (limit, offset int) {
	size := o.size()
	limit = size
	if o.lookahead {
		limit++
	}
	return limit, o.page() * size
}

// Collections lists collections.
func (c *Catalog) Collections(ctx context.Context, opts ListOptions) ([]*Collection, error) {
	order, err := opts.Order.clause(collectionSortColumns)
	if err != nil {
		return nil, err
	}
	limit, offset := opts.limits()

	ids, err := c.queryIDs(ctx, `SELECT id FROM collections `+order+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	out := make([]*Collection, len(ids))
	for i, id := range ids {
		out[i] = c.Collection(id)
	}
	return out, nil
}

// Books lists books, optionally only those of opts.CollectionID.
func (c *Catalog) Books(ctx context.Context, opts ListOptions) ([]*Book, error) {
	return c.listBooks(ctx, opts, "")
}

// LentOut lists books that are on loan.
func (c *Catalog) LentOut(ctx context.Context, opts ListOptions) ([]*Book, error) {
	return c.listBooks(ctx, opts, "borrowed_to IS NOT NULL")
}

// Search lists books whose title or authors contain query, ignoring ASCII
// case, or whose ISBN contains it.
func (c *Catalog) Search(ctx context.Context, query string, opts ListOptions) ([]*Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is empty", ErrInvalidInput)
	}
	pattern := "%" + escapeLike(strings.ToUpper(query)) + "%"
	return c.listBooks(ctx, opts,
		`(UPPER(title) LIKE ? ESCAPE '\' OR UPPER(authors) LIKE ? ESCAPE '\' OR isbn LIKE ? ESCAPE '\')`,
		pattern, pattern, pattern)
}

func (c *Catalog) listBooks(ctx context.Context, opts ListOptions, where string, args ...any) ([]*Book, error) {
	order, err := opts.Order.clause(bookSortColumns)
	if err != nil {
		return nil, err
	}

	var conds []string
	if where != "" {
		conds = append(conds, where)
	}
	if opts.CollectionID != 0 {
		conds = append(conds, "collection_id = ?")
		args = append(args, opts.CollectionID)
	}

	query := `SELECT id FROM books`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	limit, offset := opts.limits()
	query += ` ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	ids, err := c.queryIDs(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	out := make([]*Book, len(ids))
	for i, id := range ids {
		out[i] = c.Book(id)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
