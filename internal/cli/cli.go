// Package cli holds the shared plumbing of the standalone market commands:
// configuration loading, dependency wiring, JSON output and exit handling.
// Commands log to stderr and print their result as JSON on stdout, so
// output can be piped into other tools.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/outcomelab/marketd/internal/app"
	"github.com/outcomelab/marketd/internal/config"
)

// Env is the wired environment a command runs in.
type Env struct {
	Cfg    *config.Config
	Deps   *app.Dependencies
	Logger *slog.Logger

	cleanup func()
}

// Setup loads and validates the configuration at configPath and wires the
// dependency graph. The returned context ends on SIGINT/SIGTERM.
func Setup(configPath string) (context.Context, *Env, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	deps, cleanup, err := app.Wire(ctx, cfg, logger)
	if err != nil {
		stop()
		return nil, nil, err
	}

	env := &Env{
		Cfg:    cfg,
		Deps:   deps,
		Logger: logger,
		cleanup: func() {
			cleanup()
			stop()
		},
	}
	return ctx, env, nil
}

// Close releases the environment's resources.
func (e *Env) Close() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// PrintJSON writes v to stdout as indented JSON.
func PrintJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		Fatal(fmt.Errorf("encode output: %w", err))
	}
	fmt.Fprintln(os.Stdout, string(out))
}

// Fatal prints the error to stderr and exits non-zero.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
