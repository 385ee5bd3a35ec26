package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/assertion"
)

const version = "v0.1.0"

// Context represents the global context for commands
type Context struct {
	Config     string
	Connection string
	Verbose    bool
	Quiet      bool

	Stdout io.Writer
	Stderr io.Writer
}

// logger returns the slog logger for library events: debug with --verbose, silent with --quiet.
func (c *Context) logger() *slog.Logger {
	if c.Quiet {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(c.Stderr, &slog.HandlerOptions{Level: level}))
}

// newAsserter loads the configuration and creates an asserter for the selected connection.
func (c *Context) newAsserter(override tableassert.ConnectionConfig, baseDir string) (*assertion.Asserter, error) {
	config, err := tableassert.LoadConfig(c.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return assertion.New(assertion.Options{
		Config:         config,
		ConnectionName: c.Connection,
		Connection:     override,
		BaseDir:        baseDir,
		Logger:         c.logger(),
	})
}

// CLI represents the command-line interface
var CLI struct {
	Config     string     `help:"Configuration file path" default:"tableassert.yaml"`
	Connection string     `help:"Connection name from the configuration" short:"c"`
	Verbose    bool       `help:"Enable verbose output" short:"v"`
	Quiet      bool       `help:"Suppress output" short:"q"`
	Assert     AssertCmd  `cmd:"" help:"Check database contents against expectation files"`
	Reset      ResetCmd   `cmd:"" help:"Delete every row of the given tables"`
	Version    VersionCmd `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run(ctx *Context) error {
	fmt.Fprintf(ctx.Stdout, "tableassert %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI)

	appCtx := &Context{
		Config:     CLI.Config,
		Connection: CLI.Connection,
		Verbose:    CLI.Verbose,
		Quiet:      CLI.Quiet,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
