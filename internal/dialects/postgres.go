package dialects

import (
	"fmt"
	"strconv"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	RegisterDialect("pgsql", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// Limit renders "LIMIT count OFFSET offset"; PostgreSQL has no comma form.
func (d *PostgresDialect) Limit(offset, count int) string {
	return " LIMIT " + strconv.Itoa(count) + " OFFSET " + strconv.Itoa(offset)
}

// Returning renders " RETURNING column" since lib/pq does not support LastInsertId.
func (d *PostgresDialect) Returning(column string) string {
	if column == "" {
		return ""
	}
	return " RETURNING " + column
}
