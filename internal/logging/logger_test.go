package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "info", "json")).Info("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("json handler output = %q", buf.String())
	}

	buf.Reset()
	slog.New(NewHandler(&buf, "warn", "text")).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %q", buf.String())
	}
}

func TestFromContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewHandler(&buf, "info", "text")))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var ctx context.Context
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	WithFields(ctx, "run_id", "abc").Info("sync triggered")

	out := buf.String()
	if !strings.Contains(out, "request_id=") || !strings.Contains(out, "run_id=abc") {
		t.Errorf("log line = %q, want request_id and run_id", out)
	}
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "boardsync.log")
	closer := Setup(Options{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	slog.Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("log file is empty")
	}
}
