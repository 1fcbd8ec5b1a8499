package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/boardsync/internal/watch"
)

func newWatchCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Sync CSV files dropped into a directory",
		Long: `watch syncs every CSV file that appears in dir. Synced files move to
dir/Uploaded; rejected files and files with failed rows move to dir/Failed
together with their "- failed.csv" report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.shutdown()

			w, err := watch.New(args[0], a.cfg.Watch.Debounce, a.orch, slog.Default())
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
}
