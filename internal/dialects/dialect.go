// Package dialects provides database-specific SQL dialect implementations for
// MySQL, PostgreSQL, and SQLite, handling positional placeholders, LIMIT syntax,
// and RETURNING support for generated keys.
package dialects

import "sync"

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name ("mysql", "postgres", "sqlite").
	Name() string
	// Placeholder returns the positional placeholder for the 1-based index.
	Placeholder(index int) string
	// Limit renders the LIMIT clause (with leading space) for offset and count.
	Limit(offset, count int) string
	// Returning renders a clause that makes an INSERT return the generated key,
	// or "" when the driver reports it through sql.Result.LastInsertId.
	Returning(column string) string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect under a connection type name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Lookup returns the dialect registered for name.
func Lookup(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// GetDialect retrieves a registered dialect by name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := Lookup(name); ok {
		return d
	}
	panic("unsupported dialect: " + name)
}
