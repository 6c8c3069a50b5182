package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/bankero/internal/config"
	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/store"
)

// app is the per-invocation state shared by commands: resolved paths, the
// loaded config and, once opened, the current workspace's store.
type app struct {
	opts  *RootOptions
	paths config.Paths
	cfg   config.AppConfig
	log   *slog.Logger
	store *store.Store
}

// loadApp resolves paths and loads (or initialises) the config file.
func loadApp(opts *RootOptions) (*app, error) {
	paths, err := config.ResolvePaths(opts.Home)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to resolve paths", err)
	}
	cfg, err := config.LoadOrInit(paths)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &app{opts: opts, paths: paths, cfg: cfg, log: log}, nil
}

// openApp is loadApp plus the workspace store.
func openApp(opts *RootOptions) (*app, error) {
	a, err := loadApp(opts)
	if err != nil {
		return nil, err
	}
	path := a.paths.WorkspaceDB(a.cfg.CurrentWorkspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	a.log.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open database", err)
	}
	a.store = st
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}

func (a *app) saveConfig() error {
	return config.Save(a.paths.ConfigFile(), a.cfg)
}

func (a *app) clock() ledger.Clock {
	if a.opts.Clock != nil {
		return a.opts.Clock
	}
	return ledger.SystemClock{}
}

func (a *app) ids() ledger.IDGenerator {
	if a.opts.IDs != nil {
		return a.opts.IDs
	}
	return ledger.UUIDv7Generator{}
}

func (a *app) identity() ledger.Identity {
	return a.cfg.Identity(ledger.LocalUserHost())
}

func (a *app) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: a.opts.Format, Writer: cmd.OutOrStdout()}
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are written to stderr in the selected output format.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdin, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if !opts.running && GetExitCode(err) == ExitFailure {
		err = WrapExitError(ExitCommandError, "invalid arguments", err)
	}
	f := &OutputFormatter{Format: opts.Format, Writer: stderr}
	if !isValidFormat(f.Format) {
		f.Format = "text"
	}
	_ = f.Error(err)
	return GetExitCode(err)
}
