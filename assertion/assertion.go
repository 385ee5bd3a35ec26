// Package assertion is the entry point for test suites: it loads expectation documents,
// manages the database handle and evaluates the expectations against it.
//
// One shared handle is opened lazily per Asserter and reused by every call. A call that
// carries connection overrides opens a temporary handle instead and closes it before
// returning, whatever the outcome.
package assertion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/evaluator"
	"github.com/shibukawa/tableassert/expectation"
	"github.com/shibukawa/tableassert/session"
)

// Options configures an Asserter.
type Options struct {
	// Config supplies named connections. ConnectionName selects one; empty means the
	// configured default.
	Config         *tableassert.Config
	ConnectionName string
	// Connection is overlaid on the selected connection. It is used alone when Config is nil.
	Connection tableassert.ConnectionConfig
	// Handle is a caller-owned handle used as the shared handle. Close leaves it open.
	Handle session.Handle
	// BaseDir resolves relative expectation paths.
	BaseDir string
	// PreviewRows overrides how many actual rows mismatch reports carry.
	PreviewRows    int
	Logger         *slog.Logger
	SessionOptions []session.Option
}

// Override adjusts a single call.
type Override struct {
	// BaseDir resolves the expectation path of this call.
	BaseDir string
	// Connection settings overlaid on the base connection. A non-empty value makes the
	// call use a temporary handle.
	Connection tableassert.ConnectionConfig
}

type openFunc func(ctx context.Context, cfg tableassert.ConnectionConfig, opts ...session.Option) (session.Handle, error)

// Asserter evaluates expectation documents against one database.
type Asserter struct {
	base        tableassert.ConnectionConfig
	baseDir     string
	previewRows int
	logger      *slog.Logger
	sessionOpts []session.Option
	open        openFunc

	mu       sync.Mutex
	handle   session.Handle
	borrowed bool
}

// New creates an Asserter. No connection is made until the first assertion.
func New(opts Options) (*Asserter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	previewRows := tableassert.DefaultPreviewRows

	base := opts.Connection

	if opts.Config != nil {
		if opts.Config.PreviewRows > 0 {
			previewRows = opts.Config.PreviewRows
		}

		if len(opts.Config.Connections) > 0 || opts.ConnectionName != "" {
			conn, err := opts.Config.Connection(opts.ConnectionName)
			if err != nil {
				return nil, err
			}

			base = conn.Merge(opts.Connection)
		}
	}

	if opts.PreviewRows > 0 {
		previewRows = opts.PreviewRows
	}

	a := &Asserter{
		base:        base,
		baseDir:     opts.BaseDir,
		previewRows: previewRows,
		logger:      logger,
		sessionOpts: append([]session.Option{session.WithLogger(logger)}, opts.SessionOptions...),
		open:        session.Open,
	}

	if opts.Handle != nil {
		a.handle = opts.Handle
		a.borrowed = true
	}

	return a, nil
}

// ConnectionInfo returns the resolved base connection settings.
func (a *Asserter) ConnectionInfo() (tableassert.ConnectionConfig, error) {
	return a.base.Resolve()
}

// Assert loads the expectation document at path and evaluates it.
func (a *Asserter) Assert(ctx context.Context, path string, overrides ...Override) error {
	o := mergeOverrides(overrides)

	baseDir := o.BaseDir
	if baseDir == "" {
		baseDir = a.baseDir
	}

	file, err := expectation.LoadFile(path, expectation.LoadOptions{BaseDir: baseDir})
	if err != nil {
		return err
	}

	a.logger.Info("asserting expectation file", "path", path, "tables", len(file.Tables))

	return a.AssertExpectations(ctx, file, overrides...)
}

// AssertExpectations evaluates an in-memory expectation document.
func (a *Asserter) AssertExpectations(ctx context.Context, file *expectation.File, overrides ...Override) error {
	return a.withHandle(ctx, mergeOverrides(overrides), func(h session.Handle) error {
		e := evaluator.New(h, h.Dialect(),
			evaluator.WithPreviewRows(a.previewRows),
			evaluator.WithLogger(a.logger.With("handle", h.ID())))

		return e.Evaluate(ctx, file)
	})
}

// ResetTables deletes every row of tables in one transaction.
func (a *Asserter) ResetTables(ctx context.Context, tables []string, overrides ...Override) error {
	return a.withHandle(ctx, mergeOverrides(overrides), func(h session.Handle) error {
		return h.ResetTables(ctx, tables)
	})
}

// Close releases the shared handle. Handles passed in through Options stay open.
func (a *Asserter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	h := a.handle
	a.handle = nil

	if h == nil || a.borrowed {
		return nil
	}

	return h.Close()
}

func (a *Asserter) withHandle(ctx context.Context, o Override, fn func(session.Handle) error) (err error) {
	if o.Connection.IsZero() {
		shared, sharedErr := a.sharedHandle(ctx)
		if sharedErr != nil {
			return sharedErr
		}

		return fn(shared)
	}

	h, err := a.open(ctx, a.base.Merge(o.Connection), a.sessionOpts...)
	if err != nil {
		return fmt.Errorf("failed to open temporary handle: %w", err)
	}

	a.logger.Debug("opened handle", "handle", h.ID(), "temporary", true)

	defer func() {
		closeErr := h.Close()
		a.logger.Debug("closed handle", "handle", h.ID(), "temporary", true, "error", closeErr)

		if closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close temporary handle: %w", closeErr)
		}
	}()

	return fn(h)
}

func (a *Asserter) sharedHandle(ctx context.Context) (session.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle != nil {
		return a.handle, nil
	}

	h, err := a.open(ctx, a.base, a.sessionOpts...)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("opened handle", "handle", h.ID(), "temporary", false)
	a.handle = h

	return h, nil
}

func mergeOverrides(overrides []Override) Override {
	var merged Override

	for _, o := range overrides {
		if o.BaseDir != "" {
			merged.BaseDir = o.BaseDir
		}

		merged.Connection = merged.Connection.Merge(o.Connection)
	}

	return merged
}

// IsMismatch reports whether err is a database content mismatch rather than an invalid
// expectation or an infrastructure failure.
func IsMismatch(err error) bool {
	return errors.Is(err, tableassert.ErrAssertionMismatch)
}
