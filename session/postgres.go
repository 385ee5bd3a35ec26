package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/sqlbuild"
	"github.com/shibukawa/tableassert/value"
	"github.com/shopspring/decimal"
)

// PostgresHandle runs statements over a native pgx connection so arrays and JSON
// columns arrive decoded.
type PostgresHandle struct {
	id      string
	conn    *pgx.Conn
	owned   bool
	options Options
}

// OpenPostgres connects with pgx, retrying while the server starts up.
func OpenPostgres(ctx context.Context, dsn string, o Options) (*PostgresHandle, error) {
	var conn *pgx.Conn

	err := waitReady(ctx, o, func(ctx context.Context) error {
		c, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return err
		}

		conn = c

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
	}

	h := &PostgresHandle{id: newHandleID(), conn: conn, owned: true, options: o}
	o.Logger.Info("opened database handle", "handle", h.id, "driver", "postgres")

	return h, nil
}

// BorrowPostgres wraps a caller-owned connection. Close leaves conn open.
func BorrowPostgres(conn *pgx.Conn, opts ...Option) *PostgresHandle {
	return &PostgresHandle{id: newHandleID(), conn: conn, options: newOptions(opts)}
}

func (h *PostgresHandle) ID() string { return h.id }

func (h *PostgresHandle) Dialect() tableassert.Dialect { return tableassert.DialectPostgres }

// Query executes stmt, binding @pN placeholders as pgx named arguments.
func (h *PostgresHandle) Query(ctx context.Context, stmt sqlbuild.Statement) ([]value.Row, error) {
	var args []any
	if params := stmt.NamedParams(); len(params) > 0 {
		args = append(args, pgx.NamedArgs(params))
	}

	rows, err := h.conn.Query(ctx, stmt.SQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var result []value.Row

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}

		row := make(value.Row, len(fields))

		for i, field := range fields {
			v, err := convertPostgresValue(values[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", field.Name, err)
			}

			row[field.Name] = v
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// ResetTables deletes every row of tables in one transaction.
func (h *PostgresHandle) ResetTables(ctx context.Context, tables []string) error {
	stmts, err := deleteStatements(tableassert.DialectPostgres, tables)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, h.conn, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt.SQL); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset tables: %w", err)
	}

	h.options.Logger.Info("reset tables", "handle", h.id, "tables", tables)

	return nil
}

// Close closes the connection when the handle opened it.
func (h *PostgresHandle) Close() error {
	if !h.owned {
		return nil
	}

	h.options.Logger.Info("closed database handle", "handle", h.id)

	return h.conn.Close(context.Background())
}

// convertPostgresValue handles the pgx decoded types FromNative does not know.
func convertPostgresValue(raw any) (value.Value, error) {
	switch v := raw.(type) {
	case pgtype.Numeric:
		return numericValue(v), nil
	case [16]byte:
		return value.String(uuid.UUID(v).String()), nil
	case []any:
		items := make([]value.Value, len(v))
		for i, item := range v {
			converted, err := convertPostgresValue(item)
			if err != nil {
				return value.Value{}, fmt.Errorf("index %d: %w", i, err)
			}

			items[i] = converted
		}

		return value.List(items...), nil
	default:
		return value.FromNative(raw)
	}
}

func numericValue(n pgtype.Numeric) value.Value {
	switch {
	case !n.Valid:
		return value.Null()
	case n.NaN:
		return value.String("NaN")
	case n.InfinityModifier == pgtype.Infinity:
		return value.String("Infinity")
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return value.String("-Infinity")
	default:
		return value.Number(decimal.NewFromBigInt(n.Int, n.Exp))
	}
}
