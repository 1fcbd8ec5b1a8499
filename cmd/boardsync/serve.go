package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/boardsync/internal/watch"
	"github.com/JonMunkholm/boardsync/internal/web"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	var watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the drop page and API",
		Long: `serve starts the HTTP server with the drag & drop page, the JSON API and
the progress streams. With --watch (or WATCH_DIR) it also syncs CSV files
dropped into that directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.shutdown()

			if watchDir != "" {
				a.cfg.Watch.Dir = watchDir
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&watchDir, "watch", "", "directory to watch for CSV files, overrides WATCH_DIR")
	return cmd
}

// serve runs the HTTP server and the optional watcher until ctx is done.
func serve(ctx context.Context, a *app) error {
	server := web.NewServer(a.orch, a.cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if dir := a.cfg.Watch.Dir; dir != "" {
		w, err := watch.New(dir, a.cfg.Watch.Debounce, a.orch, slog.Default())
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		if status := a.orch.State(); status.RunID != "" {
			slog.Info("waiting for active sync to complete", "run_id", status.RunID)
		}
		// Closing the orchestrator ends the progress streams, which
		// server.Shutdown would otherwise wait on.
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), a.cfg.Upload.DrainTimeout)
		if err := a.orch.Close(drainCtx); err != nil {
			slog.Warn("active sync did not finish in time", "error", err)
		}
		cancelDrain()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}
