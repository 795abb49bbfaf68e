package cache

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStmtCache_ClosesEvictedStatements(t *testing.T) {
	db := setupTestDB(t)
	c := NewStmtCacheWithCapacity(1)

	first, err := db.Prepare("SELECT 1")
	require.NoError(t, err)
	c.Set("SELECT 1", first)

	second, err := db.Prepare("SELECT 2")
	require.NoError(t, err)
	c.Set("SELECT 2", second)

	// The evicted statement has been closed by the cache.
	var n int
	err = first.QueryRow().Scan(&n)
	assert.Error(t, err)

	require.NoError(t, second.QueryRow().Scan(&n))
	assert.Equal(t, 2, n)
}

func TestStmtCache_DefaultCapacity(t *testing.T) {
	c := NewStmtCache()
	assert.Equal(t, DefaultCapacity, c.Stats().Capacity)
}
