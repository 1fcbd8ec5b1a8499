package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/JonMunkholm/boardsync/internal/logging"
)

// handleProgressSSE streams orchestrator snapshots as server-sent events.
// The first event is the current snapshot. The stream ends with a
// "complete" event when the orchestrator shuts down.
func (s *Server) handleProgressSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	updates, cancel := s.orch.Subscribe()
	defer cancel()

	eventID := 0
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			data, err := json.Marshal(snap)
			if err != nil {
				logging.FromContext(r.Context()).Error("encode snapshot", "error", err)
				continue
			}
			eventID++
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleProgressWS streams the same snapshots over a websocket as text
// frames. Client messages are ignored.
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	updates, cancel := s.orch.Subscribe()
	defer cancel()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "shutting down")
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
