package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/logger"
)

// JobStream handles GET /api/jobs/stream, an SSE feed of jobqueue.Event
// values. Grounded on the teacher's internal/api/sse.go: subscribe,
// flush an initial snapshot, then stream until the client disconnects.
func (h *Handler) JobStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	eventCh := h.Queue.Subscribe()
	defer h.Queue.Unsubscribe(eventCh)

	stats, err := h.Queue.Stats(r.Context())
	if err != nil {
		logger.Warn("api: initial stats lookup failed", "error", err)
	}
	initial, _ := json.Marshal(map[string]interface{}{"type": "init", "stats": stats})
	fmt.Fprintf(w, "data: %s\n\n", initial)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			writeEvent(w, flusher, event)
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event jobqueue.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// SessionStream handles GET /api/sessions/stream, an SSE feed of
// pipeline-stage progress events fed by Handler.Progress.
func (h *Handler) SessionStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.subscribeProgress()
	defer h.unsubscribeProgress(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
