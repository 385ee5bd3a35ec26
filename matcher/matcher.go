// Package matcher pairs expected rows with fetched rows.
package matcher

import (
	"github.com/shibukawa/tableassert/expectation"
	"github.com/shibukawa/tableassert/value"
)

// RowMatches reports whether actual satisfies every expected column.
// Columns missing from actual read as null.
func RowMatches(expected expectation.Columns, actual value.Row) bool {
	for _, col := range expected {
		if !value.Matches(col.Value, actual[col.Name], false) {
			return false
		}
	}

	return true
}

// FindUnmatched returns the expected rows no distinct actual row satisfies.
//
// Expected rows are taken in order; each consumes the first remaining actual row that
// matches it. The assignment is greedy, not a maximum matching: when an earlier
// expectation consumes the only row a later one could match, the later one is reported
// even though another assignment would have satisfied both.
func FindUnmatched(expected []expectation.Columns, actual []value.Row) []expectation.Columns {
	pool := make([]value.Row, len(actual))
	copy(pool, actual)

	var unmatched []expectation.Columns

	for _, want := range expected {
		index := -1

		for i, candidate := range pool {
			if RowMatches(want, candidate) {
				index = i
				break
			}
		}

		if index < 0 {
			unmatched = append(unmatched, want)
			continue
		}

		pool = append(pool[:index], pool[index+1:]...)
	}

	return unmatched
}
