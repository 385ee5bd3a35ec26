package expectation

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/value"
)

// LoadOptions controls how expectation files are located.
type LoadOptions struct {
	// BaseDir resolves relative paths. Defaults to the working directory.
	BaseDir string
}

// LoadFile reads and validates an expectation document in YAML or JSON.
func LoadFile(path string, opts LoadOptions) (*File, error) {
	if !filepath.IsAbs(path) {
		baseDir := opts.BaseDir
		if baseDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}

			baseDir = wd
		}

		path = filepath.Join(baseDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expectation file: %w", err)
	}

	return Parse(data)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", tableassert.ErrInvalidExpectationFile, fmt.Sprintf(format, args...))
}

// Parse decodes an expectation document. Mapping order is kept, so tables are evaluated
// and columns fetched in document order.
func Parse(data []byte) (*File, error) {
	var root any

	err := yaml.UnmarshalWithOptions(data, &root, yaml.UseOrderedMap())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tableassert.ErrInvalidExpectationFile, err)
	}

	rootMap, ok := root.(yaml.MapSlice)
	if !ok {
		return nil, invalid("Root value must be an object.")
	}

	var tablesNode any

	found := false

	for _, item := range rootMap {
		key := fmt.Sprint(item.Key)
		if key != "tables" {
			return nil, invalid("unsupported root key: %s", key)
		}

		tablesNode = item.Value
		found = true
	}

	if !found {
		return nil, invalid("Missing tables section.")
	}

	tables, ok := tablesNode.(yaml.MapSlice)
	if !ok {
		return nil, invalid("tables must be an object.")
	}

	file := &File{Tables: make([]Table, 0, len(tables))}
	seen := make(map[string]struct{}, len(tables))

	for _, item := range tables {
		name := fmt.Sprint(item.Key)
		if _, dup := seen[name]; dup {
			return nil, invalid("duplicate table %s", name)
		}

		seen[name] = struct{}{}

		table, err := parseTable(name, item.Value)
		if err != nil {
			return nil, err
		}

		file.Tables = append(file.Tables, table)
	}

	return file, nil
}

func parseTable(name string, node any) (Table, error) {
	entries, ok := node.(yaml.MapSlice)
	if !ok {
		return Table{}, invalid("%s definition must be an object.", name)
	}

	table := Table{Name: name}

	var unexpected []string

	for _, item := range entries {
		key := fmt.Sprint(item.Key)

		switch key {
		case "count":
			count, err := parseCount(name, item.Value)
			if err != nil {
				return Table{}, err
			}

			table.Count = &count
		case "rows":
			rows, err := parseRows(name, item.Value)
			if err != nil {
				return Table{}, err
			}

			table.Rows = rows
		case "columns":
			columns, err := parseColumns(name+".columns", item.Value)
			if err != nil {
				return Table{}, err
			}

			table.Conditions = columns
		default:
			unexpected = append(unexpected, key)
		}
	}

	if len(unexpected) > 0 {
		return Table{}, invalid("%s contains unsupported keys: %s", name, strings.Join(unexpected, ", "))
	}

	return table, nil
}

func parseCount(table string, node any) (int64, error) {
	var count int64

	switch v := node.(type) {
	case int:
		count = int64(v)
	case int64:
		count = v
	case uint64:
		if v > math.MaxInt64 {
			return 0, invalid("%s.count is out of range.", table)
		}

		count = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, invalid("%s.count must be an integer.", table)
		}

		count = int64(v)
	default:
		return 0, invalid("%s.count must be numeric.", table)
	}

	if count < 0 {
		return 0, invalid("%s.count must not be negative.", table)
	}

	return count, nil
}

func parseRows(table string, node any) ([]Columns, error) {
	items, ok := node.([]any)
	if !ok {
		return nil, invalid("%s.rows must be an array.", table)
	}

	if len(items) == 0 {
		return nil, invalid("%s.rows cannot be an empty array.", table)
	}

	rows := make([]Columns, 0, len(items))

	for i, item := range items {
		row, err := parseColumns(fmt.Sprintf("%s.rows[%d]", table, i), item)
		if err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func parseColumns(context string, node any) (Columns, error) {
	entries, ok := node.(yaml.MapSlice)
	if !ok {
		return nil, invalid("%s must be an object.", context)
	}

	columns := make(Columns, 0, len(entries))

	for _, item := range entries {
		name := fmt.Sprint(item.Key)

		v, err := toValue(item.Value)
		if err != nil {
			return nil, invalid("%s.%s must be a string, number, boolean, null, array or object (%v).", context, name, err)
		}

		columns = append(columns, Column{Name: name, Value: v})
	}

	return columns, nil
}

// toValue converts a decoded YAML node, including ordered maps, into a Value.
func toValue(node any) (value.Value, error) {
	switch v := node.(type) {
	case yaml.MapSlice:
		fields := make(map[string]value.Value, len(v))

		for _, item := range v {
			converted, err := toValue(item.Value)
			if err != nil {
				return value.Value{}, err
			}

			fields[fmt.Sprint(item.Key)] = converted
		}

		return value.Map(fields), nil
	case []any:
		items := make([]value.Value, len(v))

		for i, item := range v {
			converted, err := toValue(item)
			if err != nil {
				return value.Value{}, err
			}

			items[i] = converted
		}

		return value.List(items...), nil
	default:
		return value.FromNative(node)
	}
}
