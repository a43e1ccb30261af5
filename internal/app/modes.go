package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/outcomelab/marketd/internal/server"
)

// AgentMode runs the full daemon: the settlement scan loop, the status
// server, the snapshot backup loop and the gateway event stream.
func (a *App) AgentMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting agent mode",
		slog.Duration("scan_interval", a.cfg.Scanner.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Scanner.Run(ctx, a.cfg.Scanner.Interval.Duration)
	})

	if a.cfg.Server.Enabled {
		srv := a.newServer(deps)
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if deps.Snapshotter != nil {
		g.Go(func() error {
			return deps.Snapshotter.Run(ctx, a.cfg.Backup.Interval.Duration)
		})
	}

	if deps.Stream != nil {
		g.Go(func() error {
			return deps.Stream.Run(ctx)
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil // clean shutdown
	}
	return err
}

// ScanMode runs exactly one repair-and-settle pass and prints its report as
// JSON on stdout.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("app: encode report: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

// ServeMode runs only the status server.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	srv := a.newServer(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) newServer(deps *Dependencies) *server.Server {
	h := server.NewHandler(deps.Records, deps.Index, deps.Coordinator, deps.AuditStore)
	return server.New(a.cfg.Server.Port, h, a.logger)
}
