package sqlbuild

import (
	"regexp"

	"github.com/shibukawa/tableassert"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be interpolated into query text.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// QuoteIdentifier validates a table or column name and quotes it for the dialect.
// Every identifier reaching query text goes through here; values are always bound.
func QuoteIdentifier(dialect tableassert.Dialect, name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", tableassert.NewAssertionError(tableassert.ErrInvalidIdentifier,
			"Identifier contains unsupported characters.",
			map[string]any{"identifier": name})
	}

	if dialect == tableassert.DialectPostgres {
		return `"` + name + `"`, nil
	}

	return "`" + name + "`", nil
}
