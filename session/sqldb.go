package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/sqlbuild"
	"github.com/shibukawa/tableassert/value"
	"github.com/shopspring/decimal"
)

// SQLHandle runs statements through database/sql (SQLite and MySQL).
type SQLHandle struct {
	id      string
	db      *sql.DB
	dialect tableassert.Dialect
	owned   bool
	options Options
}

// OpenSQL opens a database/sql handle and waits until the database answers.
func OpenSQL(ctx context.Context, driverName, dsn string, dialect tableassert.Dialect, o Options) (*SQLHandle, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}

	if err := waitReady(ctx, o, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}

	h := &SQLHandle{id: newHandleID(), db: db, dialect: dialect, owned: true, options: o}
	o.Logger.Info("opened database handle", "handle", h.id, "driver", driverName)

	return h, nil
}

// BorrowSQL wraps a caller-owned *sql.DB. Close leaves db open.
func BorrowSQL(db *sql.DB, dialect tableassert.Dialect, opts ...Option) *SQLHandle {
	return &SQLHandle{id: newHandleID(), db: db, dialect: dialect, options: newOptions(opts)}
}

func (h *SQLHandle) ID() string { return h.id }

func (h *SQLHandle) Dialect() tableassert.Dialect { return h.dialect }

// Query executes stmt. SQLite binds @pN by name, MySQL binds ? by position.
func (h *SQLHandle) Query(ctx context.Context, stmt sqlbuild.Statement) ([]value.Row, error) {
	rows, err := h.db.QueryContext(ctx, stmt.SQL, h.args(stmt)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	var result []value.Row

	for rows.Next() {
		raw := make([]any, len(columnTypes))

		ptrs := make([]any, len(columnTypes))
		for i := range raw {
			ptrs[i] = &raw[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(value.Row, len(columnTypes))

		for i, ct := range columnTypes {
			v, err := convertSQLValue(ct.DatabaseTypeName(), raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", ct.Name(), err)
			}

			row[ct.Name()] = v
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

func (h *SQLHandle) args(stmt sqlbuild.Statement) []any {
	if h.dialect.PositionalParams() {
		return stmt.Args()
	}

	args := make([]any, len(stmt.Params))
	for i, p := range stmt.Params {
		args[i] = sql.Named(p.Name, p.Value.Native())
	}

	return args
}

// ResetTables deletes every row of tables in one transaction.
func (h *SQLHandle) ResetTables(ctx context.Context, tables []string) error {
	stmts, err := deleteStatements(h.dialect, tables)
	if err != nil {
		return err
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to reset tables: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	h.options.Logger.Info("reset tables", "handle", h.id, "tables", tables)

	return nil
}

// Close closes the database when the handle opened it.
func (h *SQLHandle) Close() error {
	if !h.owned {
		return nil
	}

	h.options.Logger.Info("closed database handle", "handle", h.id)

	return h.db.Close()
}

// convertSQLValue normalizes a scanned value using the declared column type.
// Text protocols deliver numbers and JSON as bytes; the type name recovers them.
func convertSQLValue(typeName string, raw any) (value.Value, error) {
	var text string

	switch v := raw.(type) {
	case nil:
		return value.Null(), nil
	case []byte:
		text = string(v)
	case string:
		text = v
	case int64:
		if isBoolType(typeName) {
			return value.Bool(v != 0), nil
		}

		return value.FromNative(v)
	default:
		return value.FromNative(raw)
	}

	switch {
	case isJSONType(typeName):
		return value.FromJSON(text)
	case isNumericType(typeName):
		if d, err := decimal.NewFromString(strings.TrimSpace(text)); err == nil {
			return value.Number(d), nil
		}
	}

	return value.String(text), nil
}

func isJSONType(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "JSON", "JSONB":
		return true
	default:
		return false
	}
}

func isBoolType(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "BOOL", "BOOLEAN":
		return true
	default:
		return false
	}
}

func isNumericType(typeName string) bool {
	name := strings.TrimPrefix(strings.ToUpper(typeName), "UNSIGNED ")

	switch name {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT",
		"DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL":
		return true
	default:
		return false
	}
}
