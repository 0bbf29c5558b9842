package dialects

import "strconv"

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
	RegisterDialect("mariadb", &MySQLDialect{})
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string {
	return "mysql"
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// Limit renders "LIMIT offset, count".
func (d *MySQLDialect) Limit(offset, count int) string {
	return " LIMIT " + strconv.Itoa(offset) + ", " + strconv.Itoa(count)
}

// Returning returns "" because MySQL reports generated keys via LastInsertId.
func (d *MySQLDialect) Returning(_ string) string {
	return ""
}
