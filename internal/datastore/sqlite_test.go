package datastore

import (
	"context"
	"testing"

	"github.com/lepinkainen/ook/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_CreateTableAndInsert(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := NewSQLiteStore(env.Path("export.db"))
	require.NoError(t, store.Connect())
	defer func() { _ = store.Close() }()

	schema := `CREATE TABLE IF NOT EXISTS test_table (
		id INTEGER PRIMARY KEY,
		name TEXT,
		value INTEGER
	)`
	require.NoError(t, store.CreateTable(schema))

	records := []map[string]any{
		{"id": 1, "name": "foo", "value": 42},
		{"id": 2, "name": "bar", "value": 99},
	}
	require.NoError(t, store.BatchInsert(context.Background(), "ook", "test_table", records))

	// Re-exporting the same ids replaces rows instead of failing
	records[0]["value"] = 43
	require.NoError(t, store.BatchInsert(context.Background(), "ook", "test_table", records))

	rows, err := store.db.Query("SELECT id, name, value FROM test_table ORDER BY id")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var values []int
	for rows.Next() {
		var id, value int
		var name string
		require.NoError(t, rows.Scan(&id, &name, &value))
		values = append(values, value)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{43, 99}, values)
}

func TestSQLiteStore_EmptyBatch(t *testing.T) {
	store := NewSQLiteStore("unused.db")
	assert.NoError(t, store.BatchInsert(context.Background(), "ook", "books", nil))
}
