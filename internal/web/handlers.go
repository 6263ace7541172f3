package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lepinkainen/ook/internal/catalog"
)

// pathID reads the :id route parameter. A malformed id names no record.
func pathID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id %q: %w", raw, catalog.ErrNotFound)
	}
	return id, nil
}

// listOptions reads the one-based page and the sort order from the query.
func (s *Server) listOptions(c *gin.Context) (catalog.ListOptions, error) {
	opts := catalog.ListOptions{PageSize: s.opts.PageSize}

	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			opts.Page = parsed - 1
		}
	}

	order, err := catalog.ParseOrder(c.Query("sort"))
	if err != nil {
		return opts, err
	}
	opts.Order = order
	return opts, nil
}

// bookTable runs one page of list and renders it as table rows.
func (s *Server) bookTable(c *gin.Context, base string, opts catalog.ListOptions, list func(context.Context, catalog.ListOptions) ([]*catalog.Book, error)) (*tableView, error) {
	ctx := c.Request.Context()
	p, err := catalog.Paginate(ctx, opts, list)
	if err != nil {
		return nil, err
	}
	rows, err := newBookRows(ctx, p.Items)
	if err != nil {
		return nil, err
	}
	return &tableView{Rows: rows, Pager: newPager(base, c.Request.URL.Query(), p)}, nil
}

// redirect sends the client to url, both for htmx and for plain swaps.
func redirect(c *gin.Context, url string) {
	c.Header("HX-Redirect", url)
	c.HTML(http.StatusOK, "refresh", url)
}

func (s *Server) index(c *gin.Context) {
	opts, err := s.listOptions(c)
	if err != nil {
		fail(c, err)
		return
	}
	table, err := s.bookTable(c, "/", opts, s.cat.LentOut)
	if err != nil {
		fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "index.html", pageData{Title: "On loan", Table: table})
}

func (s *Server) listCollections(c *gin.Context) {
	ctx := c.Request.Context()
	opts, err := s.listOptions(c)
	if err != nil {
		fail(c, err)
		return
	}

	p, err := catalog.Paginate(ctx, opts, s.cat.Collections)
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]collectionView, 0, len(p.Items))
	for _, col := range p.Items {
		v, err := newCollectionView(ctx, col)
		if err != nil {
			fail(c, err)
			return
		}
		views = append(views, v)
	}

	c.HTML(http.StatusOK, "collections.html", pageData{
		Title:       "Collections",
		Collections: views,
		Pager:       newPager("/collections", c.Request.URL.Query(), p),
	})
}

func (s *Server) newCollectionForm(c *gin.Context) {
	c.HTML(http.StatusOK, "new-collection-form", nil)
}

func (s *Server) createCollection(c *gin.Context) {
	col, err := s.cat.NewCollection(c.Request.Context(), c.PostForm("name"))
	if err != nil {
		fail(c, err)
		return
	}
	v, err := newCollectionView(c.Request.Context(), col)
	if err != nil {
		fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "collection-created", v)
}

func (s *Server) viewCollection(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	cv, err := newCollectionView(c.Request.Context(), s.cat.Collection(id))
	if err != nil {
		fail(c, err)
		return
	}

	opts, err := s.listOptions(c)
	if err != nil {
		fail(c, err)
		return
	}
	opts.CollectionID = id
	table, err := s.bookTable(c, collectionPath(id), opts, s.cat.Books)
	if err != nil {
		fail(c, err)
		return
	}
	table.ISBNInputURL = collectionPath(id) + "/add-book"

	c.HTML(http.StatusOK, "collection.html", pageData{Title: cv.Name, Collection: &cv, Table: table})
}

func (s *Server) renameCollection(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	col := s.cat.Collection(id)

	// A blank name leaves the collection as it was.
	if name := strings.TrimSpace(c.PostForm("name")); name != "" {
		if err := col.Rename(ctx, name); err != nil {
			fail(c, err)
			return
		}
	}

	v, err := newCollectionView(ctx, col)
	if err != nil {
		fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "collection-heading", v)
}

func (s *Server) addBookByISBN(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := s.cat.Collection(id).Name(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	inputURL := collectionPath(id) + "/add-book"

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.MetadataTimeout)
	defer cancel()

	b, err := s.cat.NewBookFromISBN(ctx, c.PostForm("isbn"), id)
	if errors.Is(err, catalog.ErrInvalidInput) {
		c.HTML(http.StatusOK, "isbn-rejected", addBookView{
			ISBNInputURL: inputURL,
			Notification: notification{Message: "Invalid ISBN, try scanning again", Error: true},
		})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	row, err := newBookRow(c.Request.Context(), b)
	if err != nil {
		fail(c, err)
		return
	}
	if row.Title == "" {
		// Nothing was found; ask for the details instead.
		c.HTML(http.StatusOK, "book-form", bookView{bookRow: row, CollectionID: id})
		return
	}
	c.HTML(http.StatusOK, "book-added", addBookView{
		Book:         row,
		ISBNInputURL: inputURL,
		Notification: notification{Message: "Added " + row.Title},
	})
}

func (s *Server) listBooks(c *gin.Context) {
	opts, err := s.listOptions(c)
	if err != nil {
		fail(c, err)
		return
	}
	table, err := s.bookTable(c, "/books", opts, s.cat.Books)
	if err != nil {
		fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "books.html", pageData{Title: "Books", Table: table})
}

// searchBooks lists matching books. A blank query lists every book.
func (s *Server) searchBooks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		s.listBooks(c)
		return
	}

	opts, err := s.listOptions(c)
	if err != nil {
		fail(c, err)
		return
	}
	search := func(ctx context.Context, o catalog.ListOptions) ([]*catalog.Book, error) {
		return s.cat.Search(ctx, query, o)
	}
	table, err := s.bookTable(c, "/books/search", opts, search)
	if err != nil {
		fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "books.html", pageData{Title: "Search: " + query, Query: query, Table: table})
}

func (s *Server) viewBook(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	v, err := newBookView(c.Request.Context(), s.cat.Book(id))
	if err != nil {
		fail(c, err)
		return
	}
	title := v.Title
	if title == "" {
		title = "Book"
	}
	c.HTML(http.StatusOK, "book.html", pageData{Title: title, Book: v})
}

// putBook fills in the details of a book the metadata lookup found nothing for.
func (s *Server) putBook(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		fail(c, fmt.Errorf("%w: title is required", catalog.ErrInvalidInput))
		return
	}
	authors := strings.TrimSpace(c.PostForm("authors"))
	var collectionID int64
	if raw := c.PostForm("collection_id"); raw != "" {
		collectionID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fail(c, fmt.Errorf("%w: collection id %q", catalog.ErrInvalidInput, raw))
			return
		}
	}

	b := s.cat.Book(id)
	if err := b.Edit(ctx, func(d *catalog.BookData) {
		d.Title = title
		d.Authors = authors
		if collectionID != 0 {
			d.CollectionID = collectionID
		}
	}); err != nil {
		fail(c, err)
		return
	}
	if err := b.Save(ctx); err != nil {
		fail(c, err)
		return
	}

	row, err := newBookRow(ctx, b)
	if err != nil {
		fail(c, err)
		return
	}
	if row.Collection == nil {
		redirect(c, bookPath(id))
		return
	}
	c.HTML(http.StatusOK, "book-added", addBookView{
		Book:         row,
		ISBNInputURL: collectionPath(row.Collection.ID) + "/add-book",
		Notification: notification{Message: "Added " + row.Title},
	})
}

func (s *Server) renameBook(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	b := s.cat.Book(id)

	if title := strings.TrimSpace(c.PostForm("title")); title != "" {
		if err := b.Rename(ctx, title); err != nil {
			fail(c, err)
			return
		}
	}

	v, err := newBookView(ctx, b)
	if err != nil {
		fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "book-heading", v)
}

func (s *Server) lendBook(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	b := s.cat.Book(id)

	// A cancelled prompt sends an empty name and lends nothing.
	if borrower := decodeBorrower(c.GetHeader("HX-Prompt")); borrower != "" {
		if _, err := b.Lend(ctx, borrower); err != nil {
			fail(c, err)
			return
		}
	} else if _, err := b.Data(ctx); err != nil {
		fail(c, err)
		return
	}
	redirect(c, bookPath(id))
}

func (s *Server) returnBook(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.cat.Book(id).Return(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	redirect(c, bookPath(id))
}

func (s *Server) fetchBook(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.MetadataTimeout)
	defer cancel()
	if _, err := s.cat.Book(id).RefreshMetadata(ctx); err != nil {
		fail(c, err)
		return
	}
	redirect(c, bookPath(id))
}

func (s *Server) deleteBook(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}
	b := s.cat.Book(id)

	col, err := b.Collection(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	if err := b.Delete(ctx); err != nil {
		fail(c, err)
		return
	}

	target := "/books"
	if col != nil {
		target = collectionPath(col.ID())
	}
	redirect(c, target)
}
