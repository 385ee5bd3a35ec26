package expectation

import (
	"path/filepath"
	"testing"

	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/testhelper"
	"github.com/shibukawa/tableassert/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := testhelper.TrimIndent(t, `
		tables:
		  Users:
		    count: 1
		  Books:
		    count: 3
		    rows:
		      - Title: Example Book
		        Price: 12.5
		        Tags: [go, sql]
		        Meta:
		          pages: 120
		          langs: [en, ja]
		      - Title: Another Book
		        DeletedAt: null
		  Samples:
		    columns:
		      Id: "2"
		      Name: sample
	`)

	file, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, file.Tables, 3)

	assert.Equal(t, []string{"Users", "Books", "Samples"}, []string{file.Tables[0].Name, file.Tables[1].Name, file.Tables[2].Name})

	users := file.Tables[0]
	require.NotNil(t, users.Count)
	assert.Equal(t, int64(1), *users.Count)
	assert.Nil(t, users.Rows)
	assert.Nil(t, users.Conditions)

	books, ok := file.Table("Books")
	require.True(t, ok)
	require.Len(t, books.Rows, 2)
	assert.Equal(t, []string{"Title", "Price", "Tags", "Meta"}, books.Rows[0].Names())

	tags, _ := books.Rows[0].Get("Tags")
	assert.True(t, value.Equal(value.List(value.String("go"), value.String("sql")), tags))

	meta, _ := books.Rows[0].Get("Meta")
	assert.True(t, value.Equal(value.Map(map[string]value.Value{
		"pages": value.Int(120),
		"langs": value.List(value.String("en"), value.String("ja")),
	}), meta))

	deletedAt, ok := books.Rows[1].Get("DeletedAt")
	assert.True(t, ok)
	assert.True(t, deletedAt.IsNull())

	samples := file.Tables[2]
	assert.Equal(t, []string{"Id", "Name"}, samples.Conditions.Names())

	id, _ := samples.Conditions.Get("Id")
	assert.Equal(t, value.KindString, id.Kind())
}

func TestParse_JSON(t *testing.T) {
	file, err := Parse([]byte(`{"tables": {"Users": {"count": 2, "rows": [{"Name": "Alice", "Age": 30}]}}}`))
	require.NoError(t, err)
	require.Len(t, file.Tables, 1)

	age, _ := file.Tables[0].Rows[0].Get("Age")
	assert.True(t, value.Equal(value.Int(30), age))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		message string
	}{
		{"scalar root", `42`, "Root value must be an object."},
		{"missing tables", `other: {}`, "unsupported root key: other"},
		{"empty document", `{}`, "Missing tables section."},
		{"tables not object", `tables: [1, 2]`, "tables must be an object."},
		{"table not object", `tables: {Users: 3}`, "Users definition must be an object."},
		{"count not numeric", `tables: {Users: {count: "1"}}`, "Users.count must be numeric."},
		{"count fractional", `tables: {Users: {count: 1.5}}`, "Users.count must be an integer."},
		{"count negative", `tables: {Users: {count: -1}}`, "Users.count must not be negative."},
		{"rows not array", `tables: {Users: {rows: {Name: a}}}`, "Users.rows must be an array."},
		{"rows empty", `tables: {Users: {rows: []}}`, "Users.rows cannot be an empty array."},
		{"row not object", `tables: {Users: {rows: [1]}}`, "Users.rows[0] must be an object."},
		{"unsupported keys", `tables: {Users: {count: 1, where: x, limit: 2}}`, "Users contains unsupported keys: where, limit"},
		{"columns not object", `tables: {Users: {columns: [a]}}`, "Users.columns must be an object."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tableassert.ErrInvalidExpectationFile)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadFile_RelativeToBaseDir(t *testing.T) {
	path := testhelper.WriteFile(t, "expected.yaml", `
		tables:
		  Users:
		    count: 1
	`)

	file, err := LoadFile(filepath.Base(path), LoadOptions{BaseDir: filepath.Dir(path)})
	require.NoError(t, err)
	require.Len(t, file.Tables, 1)

	file, err = LoadFile(path, LoadOptions{BaseDir: "/nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, "Users", file.Tables[0].Name)

	_, err = LoadFile("missing.yaml", LoadOptions{BaseDir: t.TempDir()})
	assert.Error(t, err)
}
