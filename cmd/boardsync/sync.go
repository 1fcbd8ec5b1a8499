package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/boardsync/internal/core"
	"github.com/JonMunkholm/boardsync/internal/csvfile"
	"github.com/JonMunkholm/boardsync/internal/web/views"
)

func newSyncCommand(flags *rootFlags) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sync <file>",
		Short: "Sync one CSV file and print the report",
		Long: `sync loads the file, runs one sync against the board and prints a summary.
Rows that could not be synced are written to "<file> - failed.csv" next to
the input. The command exits non-zero when any row failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.shutdown()

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			if !quiet {
				updates, cancel := a.orch.Subscribe()
				defer cancel()
				go printProgress(cmd.ErrOrStderr(), updates)
			}

			report, err := a.orch.SyncFile(ctx, filepath.Base(path), f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr())

			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				out := csvfile.FailedName(path)
				if err := writeFailed(out, report); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "failed rows written to %s\n", out)
			}

			if report.Error != "" {
				return fmt.Errorf("sync aborted: %s", core.FormatUserError(fmt.Errorf("%s", report.Error)))
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d rows failed", len(report.Failed), report.Total)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the progress line")
	return cmd
}

// printProgress rewrites one "Updating C / T" line while a run is active.
func printProgress(w io.Writer, updates <-chan core.Snapshot) {
	for snap := range updates {
		if snap.State == core.StateUploading && snap.Progress.Total > 0 {
			fmt.Fprintf(w, "\r%s", views.ProgressLine(snap.Progress))
		}
	}
}

func printReport(w io.Writer, r *core.Report) error {
	summary := tablewriter.NewTable(w)
	summary.Header("File", "Board", "Rows", "Created", "Updated", "Failed", "Duration")
	if err := summary.Append(
		r.FileName,
		strconv.FormatInt(int64(r.CollectionID), 10),
		strconv.Itoa(r.Total),
		strconv.Itoa(r.Created),
		strconv.Itoa(r.Updated),
		strconv.Itoa(len(r.Failed)),
		r.Duration().Round(time.Millisecond).String(),
	); err != nil {
		return err
	}
	if err := summary.Render(); err != nil {
		return err
	}

	if len(r.Failed) == 0 {
		return nil
	}

	failed := tablewriter.NewTable(w)
	failed.Header("Line", "Phase", "Key", "Reason")
	for _, f := range r.Failed {
		if err := failed.Append(strconv.Itoa(f.Line), string(f.Phase), f.NaturalKey, f.Reason); err != nil {
			return err
		}
	}
	return failed.Render()
}

func writeFailed(path string, r *core.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := r.WriteFailed(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
