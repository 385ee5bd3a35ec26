package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/shibukawa/tableassert"
	"github.com/shibukawa/tableassert/report"
)

// Sentinel errors for command operations
var (
	ErrAssertionsFailed = errors.New("expectation files failed")
)

// ConnectionFlags override the configured connection for one invocation.
type ConnectionFlags struct {
	Driver string `help:"Database driver (spanner, postgres, mysql, sqlite3)"`
	DSN    string `help:"Data source name for SQL drivers"`
}

func (f ConnectionFlags) config() tableassert.ConnectionConfig {
	return tableassert.ConnectionConfig{Driver: f.Driver, DSN: f.DSN}
}

// AssertCmd represents the assert command
type AssertCmd struct {
	ConnectionFlags `embed:""`

	Files   []string `arg:"" help:"Expectation files (YAML or JSON)"`
	BaseDir string   `help:"Directory relative file paths are resolved against" type:"path"`
}

// Run executes the assert command. Every file is checked; the command fails when any does.
func (cmd *AssertCmd) Run(ctx *Context) error {
	asserter, err := ctx.newAsserter(cmd.config(), cmd.BaseDir)
	if err != nil {
		return err
	}
	defer asserter.Close()

	failed := 0

	for _, file := range cmd.Files {
		err := asserter.Assert(context.Background(), file)
		if err == nil {
			if !ctx.Quiet {
				fmt.Fprintln(ctx.Stdout, color.GreenString("PASS")+" "+file)
			}

			continue
		}

		failed++

		fmt.Fprintln(ctx.Stdout, color.RedString("FAIL")+" "+file)
		fmt.Fprintln(ctx.Stdout, report.Format(err))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrAssertionsFailed, failed, len(cmd.Files))
	}

	return nil
}

// ResetCmd represents the reset command
type ResetCmd struct {
	ConnectionFlags `embed:""`

	Tables []string `arg:"" help:"Tables to empty"`
}

// Run executes the reset command
func (cmd *ResetCmd) Run(ctx *Context) error {
	asserter, err := ctx.newAsserter(cmd.config(), "")
	if err != nil {
		return err
	}
	defer asserter.Close()

	err = asserter.ResetTables(context.Background(), cmd.Tables)
	if err != nil {
		return err
	}

	if !ctx.Quiet {
		color.New(color.FgGreen).Fprintf(ctx.Stdout, "Reset %d table(s)\n", len(cmd.Tables))
	}

	return nil
}
