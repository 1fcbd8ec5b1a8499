// Package watch syncs CSV files dropped into a directory.
//
// A file is picked up once it has been quiet for the debounce interval,
// loaded, synced, and moved to Uploaded/ or Failed/. Failed rows are written
// next to the failed file as "<name> - failed.csv".
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/boardsync/internal/core"
	"github.com/JonMunkholm/boardsync/internal/csvfile"
)

const (
	UploadedDir = "Uploaded"
	FailedDir   = "Failed"
)

// Processor stages and syncs one file in a single step, so rows staged by
// another caller can never be run in its place. *core.Orchestrator
// implements it.
type Processor interface {
	SyncFile(ctx context.Context, name string, r io.Reader) (*core.Report, error)
}

// Watcher watches one directory for CSV files.
type Watcher struct {
	dir      string
	debounce time.Duration
	proc     Processor
	logger   *slog.Logger

	ready chan string
	done  chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New prepares a watcher over dir and creates its Uploaded and Failed
// subdirectories.
func New(dir string, debounce time.Duration, proc Processor, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, sub := range []string{UploadedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", sub, err)
		}
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		proc:     proc,
		logger:   logger.With("component", "watch", "dir", dir),
		ready:    make(chan string, 64),
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Run watches until ctx is cancelled. CSV files already in the directory
// are queued on start. Files are processed one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()
	defer w.stopTimers()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	existing, err := filepath.Glob(filepath.Join(w.dir, "*"))
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.dir, err)
	}
	for _, path := range existing {
		if isCSV(path) {
			w.schedule(path)
		}
	}

	w.logger.Info("watching for csv files")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if isCSV(event.Name) && filepath.Dir(event.Name) == filepath.Clean(w.dir) {
					w.schedule(event.Name)
				}
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case path := <-w.ready:
			if err := w.Process(ctx, path); err != nil {
				if errors.Is(err, core.ErrSyncInProgress) || errors.Is(err, core.ErrNotReady) {
					w.logger.Info("engine busy, retrying later", "file", filepath.Base(path))
					w.schedule(path)
					continue
				}
				w.logger.Error("process file failed", "file", filepath.Base(path), "error", err)
			}
		}
	}
}

// schedule (re)arms the quiet timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) stopTimers() {
	close(w.done)
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// Process syncs one file and files it away. It returns
// core.ErrSyncInProgress or core.ErrNotReady untouched so the caller can retry;
// the file stays in place in that case.
func (w *Watcher) Process(ctx context.Context, path string) error {
	name := filepath.Base(path)
	log := w.logger.With("file", name)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	report, err := w.sync(ctx, path)
	if err != nil {
		if errors.Is(err, core.ErrSyncInProgress) || errors.Is(err, core.ErrNotReady) {
			return err
		}
		log.Warn("file rejected", "error", err)
		_, mvErr := w.move(path, FailedDir)
		return errors.Join(err, mvErr)
	}
	if report.FileName != name {
		return fmt.Errorf("run %s synced %q, not %q; leaving file in place", report.RunID, report.FileName, name)
	}
	log.Info("file synced", "run_id", report.RunID, "rows", report.Total)

	if report.Error == "" && len(report.Failed) == 0 {
		_, err := w.move(path, UploadedDir)
		return err
	}

	dest, err := w.move(path, FailedDir)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		if err := writeFailedReport(csvfile.FailedName(dest), report); err != nil {
			return err
		}
	}
	log.Warn("file synced with failures", "failed", len(report.Failed), "error", report.Error)
	return nil
}

func (w *Watcher) sync(ctx context.Context, path string) (*core.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return w.proc.SyncFile(ctx, filepath.Base(path), f)
}

// move renames path into sub, prefixing a timestamp when the name is taken.
func (w *Watcher) move(path, sub string) (string, error) {
	dest := filepath.Join(w.dir, sub, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(w.dir, sub, time.Now().Format("20060102-150405 ")+filepath.Base(path))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", filepath.Base(path), sub, err)
	}
	return dest, nil
}

func writeFailedReport(path string, report *core.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failed report: %w", err)
	}

	if err := report.WriteFailed(f); err != nil {
		f.Close()
		return fmt.Errorf("write failed report: %w", err)
	}
	return f.Close()
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv") && !strings.HasSuffix(path, " - failed.csv")
}
