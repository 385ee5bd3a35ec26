package tableassert

import "strings"

// Dialect represents supported database dialects
// This type is shared across all packages
type Dialect string

const (
	DialectSpanner  Dialect = "spanner"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect normalizes driver aliases into a Dialect.
func ParseDialect(driver string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "spanner", "cloudspanner":
		return DialectSpanner, true
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, true
	case "mysql", "mariadb":
		return DialectMySQL, true
	case "sqlite", "sqlite3":
		return DialectSQLite, true
	default:
		return "", false
	}
}

// PositionalParams reports whether statements bind parameters by position (?) instead of by name.
func (d Dialect) PositionalParams() bool {
	return d == DialectMySQL
}
