// Command boardsync reconciles CSV files into a monday.com board.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/boardsync/internal/config"
	"github.com/JonMunkholm/boardsync/internal/core"
	"github.com/JonMunkholm/boardsync/internal/logging"
	"github.com/JonMunkholm/boardsync/internal/monday"
	"github.com/JonMunkholm/boardsync/internal/store"
)

// rootFlags are shared by every command.
type rootFlags struct {
	envFile string
	boardID int64
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "boardsync",
		Short: "Sync CSV files into a monday.com board",
		Long: `boardsync reads a CSV file, matches each row to an existing board item
by its key column, creates the rows it cannot match and updates the rest.

Configuration comes from the environment (and an optional .env file).
MONDAY_API_TOKEN and BOARD_ID are the two settings most setups need.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
	root.PersistentFlags().Int64Var(&flags.boardID, "board", 0, "board id, overrides BOARD_ID")

	root.AddCommand(newServeCommand(flags))
	root.AddCommand(newSyncCommand(flags))
	root.AddCommand(newWatchCommand(flags))
	return root
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg        *config.Config
	orch       *core.Orchestrator
	cancelRuns context.CancelFunc
	closer     []io.Closer
	pool       interface{ Close() }
}

// newApp loads configuration, sets up logging and history, and starts an
// orchestrator against the configured board. ctx bounds startup only;
// background runs are cancelled by shutdown once the drain timeout passes.
func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	// Overload so the file wins over stale shell variables.
	if err := godotenv.Overload(flags.envFile); err != nil {
		slog.Debug("no env file loaded, using environment variables", "file", flags.envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.boardID != 0 {
		cfg.Board.BoardID = flags.boardID
	}
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.closer = append(a.closer, logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}))
	slog.Debug("configuration loaded", "config", cfg.String())

	runs, err := a.history(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	client := monday.NewClient(monday.Options{
		URL:        cfg.Monday.APIURL,
		Token:      cfg.Monday.APIToken,
		APIVersion: cfg.Monday.APIVersion,
		Timeout:    cfg.Monday.Timeout,
	})

	a.orch = core.New(core.Options{
		Store:    monday.NewBoard(client, cfg.Monday.KeyColumn),
		Resolver: core.StaticCollection(cfg.Board.BoardID),
		Runs:     runs,
		Logger:   slog.Default(),
	})
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelRuns = cancel
	a.orch.Start(runCtx)

	return a, nil
}

// history returns the Postgres run store when DATABASE_URL is set and an
// in-memory one otherwise.
func (a *app) history(ctx context.Context) (core.RunStore, error) {
	db := a.cfg.Database
	if !db.HistoryEnabled() {
		return core.NewMemoryRuns(0), nil
	}

	pool, err := store.Connect(ctx, store.PoolConfig{
		URL:             db.URL,
		MaxConns:        db.MaxConns,
		MinConns:        db.MinConns,
		MaxConnLifetime: db.MaxConnLifetime,
		MaxConnIdleTime: db.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect run history: %w", err)
	}
	a.pool = pool

	runs := store.NewPGRuns(pool)
	if err := runs.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	slog.Info("run history enabled", "backend", "postgres")
	return runs, nil
}

// shutdown waits for an active run, then releases resources.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Upload.DrainTimeout)
	defer cancel()

	if a.orch != nil {
		if err := a.orch.Close(ctx); err != nil {
			slog.Warn("active sync did not finish in time, cancelling", "error", err)
		}
	}
	a.close()
}

func (a *app) close() {
	if a.cancelRuns != nil {
		a.cancelRuns()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	for _, c := range a.closer {
		c.Close()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
