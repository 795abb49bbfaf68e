// Package dialects provides the SQL dialects tavola compiles for: MySQL,
// PostgreSQL and SQLite. A dialect owns identifier quoting, the placeholder
// bind style used when rebinding compiled SQL, and how inserted ids come back.
package dialects

import (
	"fmt"
	"sync"
)

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name is the canonical dialect name (mysql, postgres, sqlite).
	Name() string
	// QuoteIdentifier quotes a single column identifier.
	QuoteIdentifier(string) string
	// QuoteChar is the opening quote used by QuoteIdentifier.
	QuoteChar() byte
	// BindType is the sqlx bind type compiled "?" placeholders are rebound to.
	BindType() int
	// ReturningSQL is appended to INSERT statements to read back the primary key.
	// An empty string means the driver reports it through LastInsertId.
	ReturningSQL(pk string) string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by driver name.
func GetDialect(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := dialects[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("unsupported dialect: %s", name)
}
