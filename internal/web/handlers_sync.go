package web

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/boardsync/internal/core"
	"github.com/JonMunkholm/boardsync/internal/csvfile"
	"github.com/JonMunkholm/boardsync/internal/logging"
	"github.com/JonMunkholm/boardsync/internal/web/views"
)

const defaultRunsLimit = 20

// handleIndex renders the drop page. The page script re-fetches only the
// status section by sending X-Partial: status.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.orch.State()
	last := s.orch.LastReport()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	component := views.Page(snap, last)
	if r.Header.Get("X-Partial") == "status" {
		component = views.Status(snap, last)
	}
	if err := component.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page failed", "error", err)
	}
}

// handleUpload stages a dropped CSV file for the next run.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, r, fmt.Errorf("%w: limit %d bytes", errFileTooBig, maxSize), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		respondError(w, r, errNotCSV, http.StatusBadRequest)
		return
	}

	n, err := s.orch.LoadFile(header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_name": header.Filename,
		"rows":      n,
		"state":     s.orch.State(),
	})
}

// handleSync starts a run over the staged rows and returns immediately.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	runID, err := s.orch.StartSync()
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	logging.WithFields(r.Context(), "run_id", runID.String()).Info("sync triggered")
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID.String()})
}

// handleState returns the current snapshot, run gate occupancy and the most
// recent report.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"state": s.orch.State(), "runs": s.orch.Gate()}
	if last := s.orch.LastReport(); last != nil {
		resp["last_run"] = last.Summary()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultRunsLimit)

	runs, err := s.orch.Runs().ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleFailedRows downloads a run's failed rows as a CSV that can be
// fixed and dropped again.
func (s *Server) handleFailedRows(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	name := csvfile.FailedName(filepath.Base(report.FileName))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := report.WriteFailed(w); err != nil {
		logging.FromContext(r.Context()).Error("write failed rows", "run_id", report.RunID, "error", err)
	}
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*core.Report, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, errBadRunID, http.StatusBadRequest)
		return nil, false
	}

	report, err := s.orch.Runs().GetRun(r.Context(), id)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return nil, false
	}
	return report, true
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
