package web

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lepinkainen/ook/internal/catalog"
)

const timeLayout = "2006-01-02 15:04"

type pageData struct {
	Title       string
	Query       string
	Table       *tableView
	Pager       *pager
	Collection  *collectionView
	Collections []collectionView
	Book        *bookView
}

type collectionView struct {
	ID   int64
	Name string
}

type bookRow struct {
	ID         int64
	Title      string
	Authors    string
	Collection *collectionView
}

type loanView struct {
	Lender     string
	BorrowedAt string
	ReturnedAt string
}

type bookView struct {
	bookRow
	ISBN         string
	Publisher    string
	Year         int
	CreatedAt    string
	ImportedAt   string
	DataSource   string
	BorrowedTo   string
	CollectionID int64
	Loans        []loanView
}

type tableView struct {
	Rows         []bookRow
	ISBNInputURL string
	Pager        *pager
}

type notification struct {
	Message string
	Error   bool
}

type addBookView struct {
	Book         bookRow
	ISBNInputURL string
	Notification notification
}

// pager links to neighbouring pages. Page is one-based.
type pager struct {
	Page    int
	HasPrev bool
	HasNext bool
	PrevURL string
	NextURL string
}

func newPager[T any](base string, query url.Values, p catalog.Page[T]) *pager {
	number := p.Number + 1
	return &pager{
		Page:    number,
		HasPrev: p.HasPrev(),
		HasNext: p.More,
		PrevURL: pageURL(base, query, max(number-1, 1)),
		NextURL: pageURL(base, query, number+1),
	}
}

func pageURL(base string, query url.Values, page int) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(page))
	return base + "?" + q.Encode()
}

func collectionPath(id int64) string {
	return fmt.Sprintf("/collections/%d", id)
}

func bookPath(id int64) string {
	return fmt.Sprintf("/books/%d", id)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func newCollectionView(ctx context.Context, col *catalog.Collection) (collectionView, error) {
	name, err := col.Name(ctx)
	if err != nil {
		return collectionView{}, err
	}
	return collectionView{ID: col.ID(), Name: name}, nil
}

func newBookRow(ctx context.Context, b *catalog.Book) (bookRow, error) {
	d, err := b.Data(ctx)
	if err != nil {
		return bookRow{}, err
	}
	row := bookRow{ID: b.ID(), Title: d.Title, Authors: d.Authors}

	col, err := b.Collection(ctx)
	if err != nil {
		return bookRow{}, err
	}
	if col != nil {
		cv, err := newCollectionView(ctx, col)
		if err != nil {
			return bookRow{}, err
		}
		row.Collection = &cv
	}
	return row, nil
}

func newBookRows(ctx context.Context, books []*catalog.Book) ([]bookRow, error) {
	rows := make([]bookRow, 0, len(books))
	for _, b := range books {
		row, err := newBookRow(ctx, b)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newBookView(ctx context.Context, b *catalog.Book) (*bookView, error) {
	row, err := newBookRow(ctx, b)
	if err != nil {
		return nil, err
	}
	d, err := b.Data(ctx)
	if err != nil {
		return nil, err
	}

	v := &bookView{
		bookRow:      row,
		ISBN:         d.ISBN,
		Publisher:    d.Publisher,
		Year:         d.Year,
		CreatedAt:    formatTime(d.CreatedAt),
		ImportedAt:   formatTime(d.ImportedAt),
		DataSource:   d.DataSource,
		BorrowedTo:   d.BorrowedTo,
		CollectionID: d.CollectionID,
	}

	loans, err := b.Loans(ctx)
	if err != nil {
		return nil, err
	}
	for _, br := range loans {
		ld, err := br.Data(ctx)
		if err != nil {
			return nil, err
		}
		v.Loans = append(v.Loans, loanView{
			Lender:     ld.Lender,
			BorrowedAt: formatTime(ld.BorrowedAt),
			ReturnedAt: formatTime(ld.ReturnedAt),
		})
	}
	return v, nil
}
