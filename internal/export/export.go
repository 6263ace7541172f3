// Package export flattens the catalog into plain records and writes them to
// files, a standalone SQLite database or a Datasette instance.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/ook/internal/catalog"
	"github.com/lepinkainen/ook/internal/datastore"
	"github.com/lepinkainen/ook/internal/fileutil"
)

// BooksTable is the table exported books are written to.
const BooksTable = "books"

// BooksSchema is the export table layout. It is flatter than the catalog
// schema: the collection name is inlined.
const BooksSchema = `CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY,
	isbn TEXT,
	title TEXT,
	authors TEXT,
	publisher TEXT,
	year INTEGER,
	created_at TEXT,
	imported_at TEXT,
	data_source TEXT,
	borrowed_to TEXT,
	collection_id INTEGER,
	collection TEXT
)`

const exportPageSize = 100

// Records returns every book as a flat record, in id order.
func Records(ctx context.Context, cat *catalog.Catalog) ([]map[string]any, error) {
	names := make(map[int64]string)
	var records []map[string]any

	for page := 0; ; page++ {
		p, err := catalog.Paginate(ctx, catalog.ListOptions{Page: page, PageSize: exportPageSize}, cat.Books)
		if err != nil {
			return nil, fmt.Errorf("failed to list books: %w", err)
		}

		for _, b := range p.Items {
			d, err := b.Data(ctx)
			if err != nil {
				return nil, err
			}
			record := flatten(b.ID(), d)

			if d.CollectionID != 0 {
				name, ok := names[d.CollectionID]
				if !ok {
					name, err = cat.Collection(d.CollectionID).Name(ctx)
					if err != nil && !errors.Is(err, catalog.ErrNotFound) {
						return nil, err
					}
					names[d.CollectionID] = name
				}
				record["collection"] = nullable(name)
			}
			records = append(records, record)
		}

		if !p.More {
			break
		}
	}

	slog.Debug("Collected export records", "count", len(records))
	return records, nil
}

func flatten(id int64, d catalog.BookData) map[string]any {
	record := map[string]any{
		"id":            id,
		"isbn":          nullable(d.ISBN),
		"title":         nullable(d.Title),
		"authors":       nullable(d.Authors),
		"publisher":     nullable(d.Publisher),
		"year":          nil,
		"created_at":    timestamp(d.CreatedAt),
		"imported_at":   timestamp(d.ImportedAt),
		"data_source":   nullable(d.DataSource),
		"borrowed_to":   nullable(d.BorrowedTo),
		"collection_id": nil,
		"collection":    nil,
	}
	if d.Year != 0 {
		record["year"] = d.Year
	}
	if d.CollectionID != 0 {
		record["collection_id"] = d.CollectionID
	}
	return record
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteJSON writes records to path as a JSON array.
func WriteJSON(records []map[string]any, path string, overwrite bool) (bool, error) {
	return fileutil.WriteJSONFile(nonNil(records), path, overwrite)
}

// WriteYAML writes records to path as a YAML sequence.
func WriteYAML(records []map[string]any, path string, overwrite bool) (bool, error) {
	return fileutil.WriteYAMLFile(nonNil(records), path, overwrite)
}

// ToStore creates the export table in store and upserts records into it.
// database names the target database for stores that host several.
func ToStore(ctx context.Context, store datastore.Store, database string, records []map[string]any) (err error) {
	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to export store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	if err := store.CreateTable(BooksSchema); err != nil {
		return err
	}
	if err := store.BatchInsert(ctx, database, BooksTable, records); err != nil {
		return fmt.Errorf("failed to export books: %w", err)
	}

	slog.Info("Exported books", "count", len(records), "database", database)
	return nil
}

func nonNil(records []map[string]any) []map[string]any {
	if records == nil {
		return []map[string]any{}
	}
	return records
}
