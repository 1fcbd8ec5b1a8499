package web

// errors.go turns handler errors into JSON responses. The technical error
// is logged with the request id; the client gets the mapped user message.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/boardsync/internal/core"
	"github.com/JonMunkholm/boardsync/internal/csvfile"
	"github.com/JonMunkholm/boardsync/internal/logging"
)

var (
	errNoFile     = errors.New("no file provided")
	errNotCSV     = errors.New("not a csv file")
	errFileTooBig = errors.New("file too large")
	errBadRunID   = errors.New("invalid run id")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form with status.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request error", "path", r.URL.Path, "status", status, "error", err, "code", msg.Code)
	} else {
		log.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err, "code", msg.Code)
	}

	text := err.Error()
	if !core.IsUserFacing(err) {
		// Unmapped errors may carry internals such as connection strings.
		text = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   text,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for errors returned by the orchestrator
// and the history store.
func statusFor(err error) int {
	var perr *csvfile.ParseError
	switch {
	case errors.Is(err, core.ErrSyncInProgress), errors.Is(err, core.ErrNoData):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.As(err, &perr), errors.Is(err, csvfile.ErrEmpty),
		errors.Is(err, errNoFile), errors.Is(err, errNotCSV), errors.Is(err, errBadRunID):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooBig):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
