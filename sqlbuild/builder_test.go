package sqlbuild

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/expectation"
	"github.com/shibukawa/tableassert/value"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		dialect tableassert.Dialect
		input   string
		want    string
		wantErr bool
	}{
		{"spanner backticks", tableassert.DialectSpanner, "Users", "`Users`", false},
		{"postgres double quotes", tableassert.DialectPostgres, "Users", `"Users"`, false},
		{"underscore and digits", tableassert.DialectSQLite, "user_2", "`user_2`", false},
		{"hyphen", tableassert.DialectSpanner, "invalid-table", "", true},
		{"leading digit", tableassert.DialectSpanner, "1users", "", true},
		{"leading underscore", tableassert.DialectSpanner, "_users", "", true},
		{"injection", tableassert.DialectSpanner, "Users`; DROP TABLE x", "", true},
		{"empty", tableassert.DialectSpanner, "", "", true},
		{"space", tableassert.DialectMySQL, "my table", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QuoteIdentifier(tt.dialect, tt.input)
			if tt.wantErr {
				assert.IsError(t, err, tableassert.ErrInvalidIdentifier)

				ae, ok := tableassert.AsAssertionError(err)
				assert.True(t, ok)
				assert.Equal(t, tt.input, ae.Details["identifier"].(string))

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilder_Count(t *testing.T) {
	b := NewBuilder(tableassert.DialectSpanner)

	stmt, err := b.Count("Users", nil)
	assert.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS total FROM `Users`", stmt.SQL)
	assert.Equal(t, 0, len(stmt.Params))
	assert.Equal(t, map[string]any(nil), stmt.NamedParams())

	conditions := expectation.Columns{
		{Name: "Name", Value: value.String("Alice")},
		{Name: "DeletedAt", Value: value.Null()},
		{Name: "Age", Value: value.Int(30)},
		{Name: "Active", Value: value.Bool(true)},
	}

	stmt, err = b.Count("Users", conditions)
	assert.NoError(t, err)
	assert.Equal(t,
		"SELECT COUNT(*) AS total FROM `Users` WHERE `Name` = @p0 AND `DeletedAt` IS NULL AND `Age` = @p1 AND `Active` = @p2",
		stmt.SQL)
	assert.Equal(t, map[string]any{"p0": "Alice", "p1": int64(30), "p2": true}, stmt.NamedParams())
}

func TestBuilder_CountPositional(t *testing.T) {
	b := NewBuilder(tableassert.DialectMySQL)

	stmt, err := b.Count("Users", expectation.Columns{
		{Name: "Name", Value: value.String("Alice")},
		{Name: "Score", Value: value.Float(1.5)},
	})
	assert.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS total FROM `Users` WHERE `Name` = ? AND `Score` = ?", stmt.SQL)
	assert.Equal(t, []any{"Alice", 1.5}, stmt.Args())
}

func TestBuilder_CountRejects(t *testing.T) {
	b := NewBuilder(tableassert.DialectSpanner)

	_, err := b.Count("invalid-table", nil)
	assert.IsError(t, err, tableassert.ErrInvalidIdentifier)

	_, err = b.Count("Users", expectation.Columns{{Name: "bad column", Value: value.Int(1)}})
	assert.IsError(t, err, tableassert.ErrInvalidIdentifier)

	_, err = b.Count("Users", expectation.Columns{{Name: "Meta", Value: value.Map(nil)}})
	assert.IsError(t, err, tableassert.ErrInvalidExpectation)
}

func TestBuilder_Projection(t *testing.T) {
	b := NewBuilder(tableassert.DialectPostgres)

	rows := []expectation.Columns{
		{{Name: "Title", Value: value.String("A")}, {Name: "Author", Value: value.String("X")}},
		{{Name: "Author", Value: value.String("Y")}, {Name: "Price", Value: value.Int(10)}},
	}

	assert.Equal(t, []string{"Title", "Author", "Price"}, SelectColumns(rows))

	stmt, err := b.Projection("Books", rows)
	assert.NoError(t, err)
	assert.Equal(t, `SELECT "Title", "Author", "Price" FROM "Books"`, stmt.SQL)
	assert.Equal(t, 0, len(stmt.Params))

	stmt, err = b.Projection("Books", []expectation.Columns{{}})
	assert.NoError(t, err)
	assert.Equal(t, `SELECT 1 AS present FROM "Books"`, stmt.SQL)

	_, err = b.Projection("Books", []expectation.Columns{{{Name: "Ti-tle", Value: value.Null()}}})
	assert.IsError(t, err, tableassert.ErrInvalidIdentifier)
}

func TestBuilder_PreviewAndDelete(t *testing.T) {
	b := NewBuilder(tableassert.DialectSpanner)

	stmt, err := b.Preview("Samples", 5)
	assert.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `Samples` LIMIT 5", stmt.SQL)

	stmt, err = b.DeleteAll("Samples")
	assert.NoError(t, err)
	assert.Equal(t, "DELETE FROM `Samples` WHERE TRUE", stmt.SQL)

	_, err = b.DeleteAll("Samples;")
	assert.IsError(t, err, tableassert.ErrInvalidIdentifier)
}
