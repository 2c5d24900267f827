package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/erpseed/internal/config"
	"github.com/roach88/erpseed/internal/schema"
	"github.com/roach88/erpseed/internal/store"
)

// env is the per-invocation state shared by every command.
type env struct {
	opts   *RootOptions
	cfg    *config.Config
	out    *OutputFormatter
	logger *slog.Logger
}

// newEnv loads configuration and sets up output and logging. Log lines go
// to stderr so JSON output on stdout stays parseable.
func newEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	out := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.Load(config.LoadOptions{
		File:  opts.ConfigFile,
		Flags: cmd.Flags(),
	})
	if err != nil {
		return nil, out.fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err, nil)
	}
	if cfg.File != "" {
		logger.Debug("config loaded", "file", cfg.File)
	}

	return &env{opts: opts, cfg: cfg, out: out, logger: logger.With("site", cfg.Site)}, nil
}

// registry returns the built-in kinds extended by schema_dir.
func (e *env) registry() (*schema.Registry, error) {
	reg, err := schema.New()
	if err != nil {
		return nil, e.out.fail(ExitCommandError, ErrCodeSchema, "failed to load built-in kinds", err, nil)
	}
	if e.cfg.SchemaDir != "" {
		if err := reg.LoadDir(e.cfg.SchemaDir); err != nil {
			return nil, e.out.fail(ExitCommandError, ErrCodeSchema, "failed to load schema dir", err, nil)
		}
		e.logger.Debug("schema dir loaded", "dir", e.cfg.SchemaDir, "kinds", len(reg.Kinds()))
	}
	return reg, nil
}

// openStore opens the site database, creating it (and its directory)
// when create is set. Read-only commands pass create=false and get a
// command error for a missing database.
func (e *env) openStore(create bool) (*store.Store, error) {
	path := e.cfg.DBPath()
	if create {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, e.out.fail(ExitCommandError, ErrCodeStore, "failed to create sites dir", err, nil)
		}
	} else if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, e.out.fail(ExitCommandError, ErrCodeStore,
				fmt.Sprintf("database not found: %s", path), nil, nil)
		}
		return nil, e.out.fail(ExitCommandError, ErrCodeStore, "failed to stat database", err, nil)
	}

	storeOpts := []store.Option{store.WithSite(e.cfg.Site)}
	if e.opts.Now != nil {
		storeOpts = append(storeOpts, store.WithNow(e.opts.Now))
	}
	st, err := store.Open(path, storeOpts...)
	if err != nil {
		return nil, e.out.fail(ExitCommandError, ErrCodeStore, "failed to open database", err, nil)
	}
	e.logger.Debug("database ready", "path", path)
	return st, nil
}

func (e *env) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
