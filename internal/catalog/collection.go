package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CollectionData is the in-memory copy of a collections row.
type CollectionData struct {
	Name string
}

// Collection is a named shelf, room or box that books belong to.
type Collection struct {
	id   int64
	cat  *Catalog
	data lazy[CollectionData]
}

// Collection returns the handle for id. No storage access happens until a
// field is read.
func (c *Catalog) Collection(id int64) *Collection {
	return c.collections.get(id, func() *Collection {
		col := &Collection{id: id, cat: c}
		col.data.load = col.load
		return col
	})
}

// NewCollection inserts a collection and returns its handle, already loaded.
func (c *Catalog) NewCollection(ctx context.Context, name string) (*Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", ErrInvalidInput)
	}

	res, err := c.db.ExecContext(ctx, `INSERT INTO collections (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to insert collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read collection id: %w", err)
	}

	col := c.Collection(id)
	col.data.set(CollectionData{Name: name})
	return col, nil
}

func (col *Collection) load(ctx context.Context) (CollectionData, error) {
	var name sql.NullString
	err := col.cat.db.QueryRowContext(ctx, `SELECT name FROM collections WHERE id = ?`, col.id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return CollectionData{}, fmt.Errorf("collection %d: %w", col.id, ErrNotFound)
	}
	if err != nil {
		return CollectionData{}, fmt.Errorf("failed to load collection %d: %w", col.id, err)
	}
	return CollectionData{Name: name.String}, nil
}

// ID returns the row id.
func (col *Collection) ID() int64 {
	return col.id
}

// Name returns the collection name.
func (col *Collection) Name(ctx context.Context) (string, error) {
	return field(ctx, &col.data, func(d *CollectionData) string { return d.Name })
}

// Data returns a snapshot of the whole row.
func (col *Collection) Data(ctx context.Context) (CollectionData, error) {
	return col.data.read(ctx)
}

// Rename writes the new name to storage immediately.
func (col *Collection) Rename(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: collection name is empty", ErrInvalidInput)
	}

	res, err := col.cat.db.ExecContext(ctx, `UPDATE collections SET name = ? WHERE id = ?`, name, col.id)
	if err != nil {
		return fmt.Errorf("failed to rename collection %d: %w", col.id, err)
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("collection %d: %w", col.id, ErrNotFound)
	}

	col.data.set(CollectionData{Name: name})
	return nil
}

// Books lists the books in this collection.
func (col *Collection) Books(ctx context.Context, opts ListOptions) ([]*Book, error) {
	opts.CollectionID = col.id
	return col.cat.Books(ctx, opts)
}

// AddBook moves b into this collection and saves it.
func (col *Collection) AddBook(ctx context.Context, b *Book) error {
	if err := col.data.ensure(ctx); err != nil {
		return err
	}
	if err := b.Edit(ctx, func(d *BookData) { d.CollectionID = col.id }); err != nil {
		return err
	}
	return b.Save(ctx)
}
