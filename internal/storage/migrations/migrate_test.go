package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLite_AppliesSchemaAndIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	v, err := SQLite(path)
	require.NoError(t, err)
	require.Equal(t, uint(1), v)

	v, err = SQLite(path)
	require.NoError(t, err, "second run should be a no-op")
	require.Equal(t, uint(1), v)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	for _, table := range []string{"groups", "group_members", "group_expenses", "group_expense_shares", "expense_idempotency", "settlements"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}
