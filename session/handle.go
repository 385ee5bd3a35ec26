// Package session owns database handles: opening them from connection settings,
// executing statements for the evaluator, resetting tables and releasing them.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/sqlbuild"
	"github.com/shibukawa/tableassert/value"
)

// Handle is an open database handle.
type Handle interface {
	// ID identifies the handle in logs.
	ID() string
	// Dialect returns the SQL dialect statements for this handle are built in.
	Dialect() tableassert.Dialect
	// Query executes a read-only statement and returns the fetched rows.
	Query(ctx context.Context, stmt sqlbuild.Statement) ([]value.Row, error)
	// ResetTables deletes every row of the given tables in one transaction.
	ResetTables(ctx context.Context, tables []string) error
	// Close releases the handle. Borrowed handles leave the underlying client open.
	Close() error
}

// Options configures how handles are opened.
type Options struct {
	// ConnectRetries bounds the readiness probes made while the database starts up.
	ConnectRetries uint64
	// ConnectTimeout bounds the total time spent waiting for readiness.
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Option configures Options.
type Option func(*Options)

// WithLogger sets the logger used for handle lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithConnectRetries sets how many readiness probes are retried.
func WithConnectRetries(n uint64) Option {
	return func(o *Options) {
		o.ConnectRetries = n
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		ConnectRetries: 5,
		ConnectTimeout: 30 * time.Second,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Open resolves the connection settings and opens a handle the caller owns.
func Open(ctx context.Context, cfg tableassert.ConnectionConfig, opts ...Option) (Handle, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	dialect, err := resolved.Dialect()
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)

	switch dialect {
	case tableassert.DialectSpanner:
		return OpenSpanner(ctx, resolved, o)
	case tableassert.DialectPostgres:
		return OpenPostgres(ctx, resolved.DSN, o)
	case tableassert.DialectMySQL:
		return OpenSQL(ctx, "mysql", resolved.DSN, dialect, o)
	case tableassert.DialectSQLite:
		return OpenSQL(ctx, "sqlite3", resolved.DSN, dialect, o)
	default:
		return nil, fmt.Errorf("%w: %s", tableassert.ErrUnsupportedDriver, resolved.Driver)
	}
}

// waitReady probes the database until it answers, with bounded exponential backoff.
// Emulators and containers accept connections a while after they start.
func waitReady(ctx context.Context, o Options, probe func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond

	attempt := 0

	return backoff.Retry(func() error {
		attempt++

		err := probe(ctx)
		if err != nil {
			o.Logger.Debug("database not ready", "attempt", attempt, "error", err)
		}

		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, o.ConnectRetries), ctx))
}

// deleteStatements validates the table list and builds one DELETE per table.
func deleteStatements(dialect tableassert.Dialect, tables []string) ([]sqlbuild.Statement, error) {
	if len(tables) == 0 {
		return nil, tableassert.NewAssertionError(tableassert.ErrNoTablesToReset,
			"No tables specified for reset",
			map[string]any{"tableNames": tables})
	}

	builder := sqlbuild.NewBuilder(dialect)
	stmts := make([]sqlbuild.Statement, 0, len(tables))

	for _, table := range tables {
		stmt, err := builder.DeleteAll(table)
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

func newHandleID() string {
	return uuid.NewString()
}
