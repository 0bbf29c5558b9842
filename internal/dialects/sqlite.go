package dialects

import "strconv"

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// Limit renders "LIMIT offset, count", which SQLite accepts like MySQL.
func (d *SQLiteDialect) Limit(offset, count int) string {
	return " LIMIT " + strconv.Itoa(offset) + ", " + strconv.Itoa(count)
}

// Returning returns "" because both SQLite drivers implement LastInsertId.
func (d *SQLiteDialect) Returning(_ string) string {
	return ""
}
