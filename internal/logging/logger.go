// Package logging configures the process-wide log/slog logger.
//
// Request-scoped loggers pick up chi's request ID so every line written while
// handling an upload or sync trigger can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how logs are written.
type Options struct {
	Level  string
	Format string

	// File enables a size-rotated log file instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup installs the default slog logger and returns a closer for the
// underlying writer. The closer is a no-op for stderr.
func Setup(opts Options) io.Closer {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		w, closer = rotator, rotator
	}

	slog.SetDefault(slog.New(NewHandler(w, opts.Level, opts.Format)))
	return closer
}

// NewHandler builds a text or JSON handler at the given level.
func NewHandler(w io.Writer, level, format string) slog.Handler {
	ho := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the default logger, tagged with the chi request ID
// when ctx carries one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithFields returns a request-scoped logger carrying extra fields, e.g.
//
//	log := logging.WithFields(ctx, "run_id", runID, "board_id", boardID)
//	log.Info("sync started", "rows", n)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
