// Package evaluator checks expectation documents against a live database.
package evaluator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/expectation"
	"github.com/shibukawa/tableassert/matcher"
	"github.com/shibukawa/tableassert/sqlbuild"
	"github.com/shibukawa/tableassert/value"
)

// Querier executes one statement and returns the fetched rows.
// Cancellation and timeouts are up to the implementation and the context.
type Querier interface {
	Query(ctx context.Context, stmt sqlbuild.Statement) ([]value.Row, error)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPreviewRows sets how many actual rows are attached to mismatch details.
func WithPreviewRows(n int) Option {
	return func(e *Evaluator) {
		e.previewRows = n
	}
}

// WithLogger sets the logger used for per-table and per-statement events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Evaluator runs the checks of every table in an expectation document. It keeps no
// state between calls.
type Evaluator struct {
	querier     Querier
	builder     *sqlbuild.Builder
	previewRows int
	logger      *slog.Logger
}

// New creates an evaluator issuing statements in the given dialect through querier.
func New(querier Querier, dialect tableassert.Dialect, opts ...Option) *Evaluator {
	e := &Evaluator{
		querier:     querier,
		builder:     sqlbuild.NewBuilder(dialect),
		previewRows: tableassert.DefaultPreviewRows,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evaluate validates every table expectation, then checks the tables in document
// order. It returns the first failure.
func (e *Evaluator) Evaluate(ctx context.Context, file *expectation.File) error {
	for _, table := range file.Tables {
		if err := e.validate(table); err != nil {
			return err
		}
	}

	for _, table := range file.Tables {
		if err := e.evaluateTable(ctx, table); err != nil {
			return err
		}
	}

	return nil
}

// EvaluateTable validates and checks a single table expectation.
func (e *Evaluator) EvaluateTable(ctx context.Context, table expectation.Table) error {
	if err := e.validate(table); err != nil {
		return err
	}

	return e.evaluateTable(ctx, table)
}

// validate rejects bad identifiers and contradictory expectations before any query.
func (e *Evaluator) validate(table expectation.Table) error {
	if _, err := e.builder.Quote(table.Name); err != nil {
		return withTable(err, table.Name)
	}

	if err := table.Validate(); err != nil {
		return err
	}

	names := append(sqlbuild.SelectColumns(table.Rows), table.Conditions.Names()...)
	for _, name := range names {
		if _, err := e.builder.Quote(name); err != nil {
			return withTable(err, table.Name)
		}
	}

	return nil
}

func (e *Evaluator) evaluateTable(ctx context.Context, table expectation.Table) error {
	checks := table.Checks()
	e.logger.Info("evaluating table", "table", table.Name, "checks", len(checks))

	for _, check := range checks {
		var err error

		switch c := check.(type) {
		case expectation.CountCheck:
			err = e.checkCount(ctx, table.Name, c)
		case expectation.RowsCheck:
			err = e.checkRows(ctx, table.Name, c)
		case expectation.PredicateCheck:
			err = e.checkPredicate(ctx, table.Name, c)
		default:
			panic(fmt.Sprintf("unknown check %T", check))
		}

		if err != nil {
			e.logger.Info("table assertion failed", "table", table.Name, "error", err)
			return err
		}
	}

	return nil
}

func (e *Evaluator) checkCount(ctx context.Context, table string, check expectation.CountCheck) error {
	actual, err := e.count(ctx, table, nil)
	if err != nil {
		return err
	}

	if actual != check.Expected {
		return tableassert.NewAssertionError(tableassert.ErrAssertionMismatch,
			fmt.Sprintf("Row count mismatch in table %q.", table),
			map[string]any{
				"table":    table,
				"expected": check.Expected,
				"actual":   actual,
			})
	}

	return nil
}

func (e *Evaluator) checkRows(ctx context.Context, table string, check expectation.RowsCheck) error {
	stmt, err := e.builder.Projection(table, check.Rows)
	if err != nil {
		return withTable(err, table)
	}

	actualRows, err := e.query(ctx, table, stmt)
	if err != nil {
		return err
	}

	missing := matcher.FindUnmatched(check.Rows, actualRows)
	if len(missing) == 0 {
		return nil
	}

	return tableassert.NewAssertionError(tableassert.ErrAssertionMismatch,
		fmt.Sprintf("%d expected row(s) not found in table %q.", len(missing), table),
		map[string]any{
			"table":           table,
			"missingRows":     missing,
			"actualRowsCount": len(actualRows),
			"actualRows":      lo.Slice(actualRows, 0, e.previewRows),
		})
}

func (e *Evaluator) checkPredicate(ctx context.Context, table string, check expectation.PredicateCheck) error {
	matched, err := e.count(ctx, table, check.Conditions)
	if err != nil {
		return err
	}

	if matched > 0 {
		return nil
	}

	stmt, err := e.builder.Preview(table, e.previewRows)
	if err != nil {
		return withTable(err, table)
	}

	preview, err := e.query(ctx, table, stmt)
	if err != nil {
		return err
	}

	var actual any = preview
	if len(preview) == 0 {
		actual = "No rows found in table"
	}

	return tableassert.NewAssertionError(tableassert.ErrAssertionMismatch,
		fmt.Sprintf("No rows matched the expected column values in table %q.", table),
		map[string]any{
			"table":    table,
			"expected": check.Conditions,
			"actual":   actual,
		})
}

func (e *Evaluator) count(ctx context.Context, table string, conditions expectation.Columns) (int64, error) {
	stmt, err := e.builder.Count(table, conditions)
	if err != nil {
		return 0, withTable(err, table)
	}

	rows, err := e.query(ctx, table, stmt)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, nil
	}

	total, err := NormalizeCount(rows[0][sqlbuild.CountAlias])
	if err != nil {
		return 0, withTable(err, table)
	}

	return total, nil
}

func (e *Evaluator) query(ctx context.Context, table string, stmt sqlbuild.Statement) ([]value.Row, error) {
	e.logger.Debug("query", "table", table, "sql", stmt.SQL, "params", stmt.NamedParams())

	rows, err := e.querier.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table, err)
	}

	return rows, nil
}

func withTable(err error, table string) error {
	if ae, ok := tableassert.AsAssertionError(err); ok {
		if _, exists := ae.Details["table"]; !exists {
			return ae.WithDetail("table", table)
		}
	}

	return err
}
