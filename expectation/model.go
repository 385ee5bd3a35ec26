// Package expectation is the in-memory form of an expectation document: for each table
// an optional exact row count, rows that must be present and legacy column conditions.
package expectation

import (
	"bytes"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/value"
)

// Column is one expected column value.
type Column struct {
	Name  string
	Value value.Value
}

// Columns is an ordered set of expected column values. The order defines predicate
// order and the order columns are fetched in.
type Columns []Column

// ColumnsFromMap builds Columns from a Go map, sorted by column name.
func ColumnsFromMap(m map[string]any) (Columns, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	columns := make(Columns, 0, len(names))
	for _, name := range names {
		v, err := value.FromNative(m[name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}

		columns = append(columns, Column{Name: name, Value: v})
	}

	return columns, nil
}

// Names returns the column names in order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}

	return names
}

// Get returns the expected value of a column.
func (c Columns) Get(name string) (value.Value, bool) {
	for _, col := range c {
		if col.Name == name {
			return col.Value, true
		}
	}

	return value.Null(), false
}

// MarshalJSON renders the columns as a JSON object keeping column order.
func (c Columns) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, col := range c {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(col.Name)
		if err != nil {
			return nil, err
		}

		val, err := col.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Table is the expectation for one table.
//
// A nil Rows means rows were not declared; a non-nil empty Rows was declared empty and
// is rejected by Validate. Conditions follows the same convention.
type Table struct {
	Name       string
	Count      *int64
	Rows       []Columns
	Conditions Columns
}

// Int64 returns a pointer to n, for Table.Count.
func Int64(n int64) *int64 {
	return &n
}

// File is a whole expectation document: table expectations in document order.
type File struct {
	Tables []Table
}

// Table returns the expectation of the named table.
func (f *File) Table(name string) (Table, bool) {
	for _, t := range f.Tables {
		if t.Name == name {
			return t, true
		}
	}

	return Table{}, false
}

// Check is one verification applied to a table. The set of implementations is closed.
type Check interface {
	isCheck()
}

// CountCheck verifies the exact number of rows in the table.
type CountCheck struct {
	Expected int64
}

// RowsCheck verifies each expected row is present as a distinct actual row.
type RowsCheck struct {
	Rows []Columns
}

// PredicateCheck verifies at least one row satisfies the equality conditions.
type PredicateCheck struct {
	Conditions Columns
}

func (CountCheck) isCheck()     {}
func (RowsCheck) isCheck()      {}
func (PredicateCheck) isCheck() {}

// Validate rejects contradictory expectations before any query runs.
func (t Table) Validate() error {
	if t.Rows != nil && len(t.Rows) == 0 {
		return tableassert.NewAssertionError(tableassert.ErrInvalidExpectation,
			"rows cannot be an empty array.",
			map[string]any{"table": t.Name})
	}

	if t.Count != nil {
		if *t.Count < 0 {
			return tableassert.NewAssertionError(tableassert.ErrInvalidExpectation,
				"count must not be negative.",
				map[string]any{"table": t.Name, "count": *t.Count})
		}

		if int64(len(t.Rows)) > *t.Count {
			return tableassert.NewAssertionError(tableassert.ErrInvalidExpectation,
				"rows declares more rows than count allows.",
				map[string]any{"table": t.Name, "count": *t.Count, "rows": len(t.Rows)})
		}
	}

	for i, row := range t.Rows {
		if err := uniqueNames(row); err != nil {
			return tableassert.NewAssertionError(tableassert.ErrInvalidExpectation,
				err.Error(),
				map[string]any{"table": t.Name, "row": i})
		}
	}

	if err := uniqueNames(t.Conditions); err != nil {
		return tableassert.NewAssertionError(tableassert.ErrInvalidExpectation,
			err.Error(),
			map[string]any{"table": t.Name})
	}

	return nil
}

func uniqueNames(columns Columns) error {
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if _, ok := seen[col.Name]; ok {
			return fmt.Errorf("duplicate column %s", col.Name)
		}

		seen[col.Name] = struct{}{}
	}

	return nil
}

// Checks returns the verifications declared for the table, count first.
func (t Table) Checks() []Check {
	var checks []Check

	if t.Count != nil {
		checks = append(checks, CountCheck{Expected: *t.Count})
	}

	if len(t.Rows) > 0 {
		checks = append(checks, RowsCheck{Rows: t.Rows})
	}

	if t.Conditions != nil {
		checks = append(checks, PredicateCheck{Conditions: t.Conditions})
	}

	return checks
}
