package cache

import "database/sql"

// StmtCache stores prepared statements keyed by SQL text. Statements leaving
// the cache are closed.
type StmtCache struct {
	*LRU[string, *sql.Stmt]
}

// NewStmtCache creates a statement cache with the default capacity.
func NewStmtCache() *StmtCache {
	return NewStmtCacheWithCapacity(DefaultCapacity)
}

// NewStmtCacheWithCapacity creates a statement cache with the given capacity.
func NewStmtCacheWithCapacity(capacity int) *StmtCache {
	return &StmtCache{
		LRU: NewLRU(capacity, func(_ string, stmt *sql.Stmt) {
			if stmt != nil {
				_ = stmt.Close()
			}
		}),
	}
}
