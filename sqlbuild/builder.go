// Package sqlbuild assembles the parameterized statements issued while evaluating
// expectations. Identifiers are validated and quoted; values are always bound.
package sqlbuild

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/expectation"
	"github.com/shibukawa/tableassert/value"
)

// CountAlias is the result column of count statements.
const CountAlias = "total"

// Param is a bound statement parameter.
type Param struct {
	Name  string
	Value value.Value
}

// Statement is query text plus its bound parameters in binding order.
type Statement struct {
	SQL     string
	Params  []Param
	Dialect tableassert.Dialect
}

// NamedParams returns the parameters keyed by name as plain Go values.
func (s Statement) NamedParams() map[string]any {
	if len(s.Params) == 0 {
		return nil
	}

	params := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		params[p.Name] = p.Value.Native()
	}

	return params
}

// Args returns the parameter values in binding order, for positional drivers.
func (s Statement) Args() []any {
	return lo.Map(s.Params, func(p Param, _ int) any {
		return p.Value.Native()
	})
}

// Builder creates statements for one dialect. It holds no cache; statements are built
// fresh for every evaluation.
type Builder struct {
	dialect tableassert.Dialect
}

// NewBuilder creates a statement builder.
func NewBuilder(dialect tableassert.Dialect) *Builder {
	return &Builder{dialect: dialect}
}

// Dialect returns the builder dialect.
func (b *Builder) Dialect() tableassert.Dialect {
	return b.dialect
}

// Quote validates and quotes an identifier.
func (b *Builder) Quote(name string) (string, error) {
	return QuoteIdentifier(b.dialect, name)
}

func (b *Builder) placeholder(name string) string {
	if b.dialect.PositionalParams() {
		return "?"
	}

	return "@" + name
}

// Count builds SELECT COUNT(*) AS total FROM table, optionally filtered by an
// equality conjunction over conditions. Null conditions become IS NULL.
func (b *Builder) Count(table string, conditions expectation.Columns) (Statement, error) {
	quotedTable, err := b.Quote(table)
	if err != nil {
		return Statement{}, err
	}

	var (
		clauses []string
		params  []Param
	)

	for _, cond := range conditions {
		column, err := b.Quote(cond.Name)
		if err != nil {
			return Statement{}, err
		}

		switch cond.Value.Kind() {
		case value.KindNull:
			clauses = append(clauses, column+" IS NULL")
			continue
		case value.KindList, value.KindMap:
			return Statement{}, tableassert.NewAssertionError(tableassert.ErrInvalidExpectation,
				"Column conditions only support scalar values.",
				map[string]any{"table": table, "column": cond.Name, "value": cond.Value})
		case value.KindBool, value.KindNumber, value.KindString:
		}

		name := "p" + strconv.Itoa(len(params))
		clauses = append(clauses, fmt.Sprintf("%s = %s", column, b.placeholder(name)))
		params = append(params, Param{Name: name, Value: cond.Value})
	}

	sql := fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s", CountAlias, quotedTable)
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}

	return Statement{SQL: sql, Params: params, Dialect: b.dialect}, nil
}

// SelectColumns returns the union of column names referenced by rows, in order of
// first appearance.
func SelectColumns(rows []expectation.Columns) []string {
	names := lo.FlatMap(rows, func(row expectation.Columns, _ int) []string {
		return row.Names()
	})

	return lo.Uniq(names)
}

// Projection builds a SELECT over the columns referenced by rows, so unrelated
// columns are never fetched.
func (b *Builder) Projection(table string, rows []expectation.Columns) (Statement, error) {
	quotedTable, err := b.Quote(table)
	if err != nil {
		return Statement{}, err
	}

	columns := SelectColumns(rows)
	if len(columns) == 0 {
		// Empty row expectations match any row; fetch one constant per row.
		return Statement{SQL: "SELECT 1 AS present FROM " + quotedTable, Dialect: b.dialect}, nil
	}

	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i], err = b.Quote(column)
		if err != nil {
			return Statement{}, err
		}
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quotedTable)

	return Statement{SQL: sql, Dialect: b.dialect}, nil
}

// Preview builds SELECT * FROM table LIMIT n, used to attach actual data to failures.
func (b *Builder) Preview(table string, limit int) (Statement, error) {
	quotedTable, err := b.Quote(table)
	if err != nil {
		return Statement{}, err
	}

	sql := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quotedTable, limit)

	return Statement{SQL: sql, Dialect: b.dialect}, nil
}

// DeleteAll builds a statement removing every row of table.
func (b *Builder) DeleteAll(table string) (Statement, error) {
	quotedTable, err := b.Quote(table)
	if err != nil {
		return Statement{}, err
	}

	return Statement{SQL: fmt.Sprintf("DELETE FROM %s WHERE TRUE", quotedTable), Dialect: b.dialect}, nil
}
