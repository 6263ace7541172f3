package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration is one ordered schema upgrade. Migrations are applied in slice
// order; the version stored in the state table is the number applied so far.
type Migration struct {
	Name string
	Up   func(ctx context.Context, tx *sql.Tx) error
}

// MigrationError reports a failed schema upgrade. The failed migration has
// been rolled back and the stored version is unchanged.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Migrations is the catalog schema history.
var Migrations = []Migration{
	{Name: "initial", Up: migrateInitial},
	{Name: "rename_places_to_collections", Up: migrateCollections},
	{Name: "book_details", Up: migrateBookDetails},
	{Name: "borrowed_to", Up: migrateBorrowedTo},
}

// LatestVersion is the schema version after all migrations have run.
func LatestVersion() int {
	return len(Migrations)
}

// SchemaVersion returns the stored schema version, or 0 for a fresh
// database without a state table.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'state'`,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := db.QueryRowContext(ctx, `SELECT version FROM state`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending migrations and returns the resulting version.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	return MigrateTo(ctx, db, LatestVersion())
}

// MigrateTo applies pending migrations up to target. Each migration runs in
// its own transaction together with the version bump. The first failure is
// rolled back and returned as a *MigrationError.
func MigrateTo(ctx context.Context, db *sql.DB, target int) (int, error) {
	version, err := SchemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	if target > len(Migrations) {
		target = len(Migrations)
	}

	for version < target {
		m := Migrations[version]
		slog.Info("Running migration", "version", version+1, "name", m.Name)

		if err := runMigration(ctx, db, m, version+1); err != nil {
			slog.Error("Rolling back migration", "version", version+1, "name", m.Name, "error", err)
			return version, &MigrationError{Version: version + 1, Name: m.Name, Err: err}
		}

		version++
		slog.Info("Migration successful", "version", version, "name", m.Name)
	}

	return version, nil
}

func runMigration(ctx context.Context, db *sql.DB, m Migration, next int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE state SET version = ?`, next); err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	return tx.Commit()
}

func execAll(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateInitial(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`CREATE TABLE state (version INTEGER NOT NULL)`,
		`INSERT INTO state (version) VALUES (0)`,
		`CREATE TABLE places (
			id INTEGER PRIMARY KEY,
			name TEXT
		)`,
		`CREATE TABLE books (
			id INTEGER PRIMARY KEY,
			isbn VARCHAR(13),
			title TEXT,
			author TEXT,
			created_at TIMESTAMP DEFAULT (datetime('now')),
			imported_at TIMESTAMP,
			data_source VARCHAR(32),
			place_id INTEGER,
			FOREIGN KEY(place_id) REFERENCES places(id)
		)`,
		`CREATE TABLE borrows (
			id INTEGER PRIMARY KEY,
			book_id INTEGER,
			lender TEXT,
			borrowed_at TIMESTAMP DEFAULT (datetime('now')),
			returned_at TIMESTAMP,
			FOREIGN KEY(book_id) REFERENCES books(id)
		)`,
	)
}

func migrateCollections(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`ALTER TABLE places RENAME TO collections`,
		`ALTER TABLE books RENAME COLUMN place_id TO collection_id`,
	)
}

func migrateBookDetails(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`ALTER TABLE books RENAME COLUMN author TO authors`,
		`ALTER TABLE books ADD COLUMN publisher TEXT`,
		`ALTER TABLE books ADD COLUMN year INTEGER`,
	)
}

// migrateBorrowedTo denormalizes the open loan onto the book row. The
// borrows table stays as loan history.
func migrateBorrowedTo(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`ALTER TABLE books ADD COLUMN borrowed_to TEXT`,
		`UPDATE books SET borrowed_to = (
			SELECT lender FROM borrows
			WHERE borrows.book_id = books.id AND borrows.returned_at IS NULL
			ORDER BY borrows.borrowed_at DESC, borrows.id DESC
			LIMIT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_books_collection_id ON books(collection_id)`,
		`CREATE INDEX IF NOT EXISTS idx_borrows_book_id ON borrows(book_id)`,
	)
}
