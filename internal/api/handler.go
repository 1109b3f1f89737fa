// Package api exposes a small HTTP surface over the orchestrator and job
// queue: session status/listing, a job-event SSE stream, and a
// Prometheus scrape endpoint. Generalized from the teacher's
// internal/api (same handler-struct-plus-ServeMux shape, same JSON
// response helpers) off a browse/transcode API onto an ingest-session
// one; the teacher's embedded web UI is out of scope here (SPEC_FULL §C),
// so this package has no static asset handling to carry forward.
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/metrics"
	"github.com/nightfoxfilms/ingestcore/internal/orchestrator"
	"github.com/nightfoxfilms/ingestcore/internal/repo"
)

// Handler serves the ingest core's HTTP API.
type Handler struct {
	Repo  repo.Repo
	Queue *jobqueue.Queue

	progressMu   sync.RWMutex
	progressSubs map[chan sessionStatusEvent]struct{}
}

// NewHandler builds a Handler bound to the given repository and queue.
func NewHandler(r repo.Repo, q *jobqueue.Queue) *Handler {
	return &Handler{
		Repo:         r,
		Queue:        q,
		progressSubs: make(map[chan sessionStatusEvent]struct{}),
	}
}

// Progress is an orchestrator.ProgressFunc that fans pipeline-stage
// updates out to every subscribed session-stream client as "import:progress"
// events. Wire it to Orchestrator.Progress in cmd/ingest so the CLI's own
// run and any SSE client see the same events.
func (h *Handler) Progress(stage orchestrator.Status, index, total int, filename string) {
	h.publish(sessionStatusEvent{Type: "import:progress", Stage: stage, Index: index, Total: total, Filename: filename})
}

// SessionEvent is an orchestrator.SessionEventFunc that fans the
// "import:complete" / "import:paused" / "import:error" session-level
// events spec.md §6 names out to every subscribed client. Wire it to
// Orchestrator.SessionEvent alongside Progress.
func (h *Handler) SessionEvent(sessionID, event string) {
	h.publish(sessionStatusEvent{Type: event, SessionID: sessionID})
}

func (h *Handler) publish(event sessionStatusEvent) {
	h.progressMu.RLock()
	defer h.progressMu.RUnlock()
	for ch := range h.progressSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Handler) subscribeProgress() chan sessionStatusEvent {
	ch := make(chan sessionStatusEvent, 100)
	h.progressMu.Lock()
	h.progressSubs[ch] = struct{}{}
	h.progressMu.Unlock()
	return ch
}

func (h *Handler) unsubscribeProgress(ch chan sessionStatusEvent) {
	h.progressMu.Lock()
	delete(h.progressSubs, ch)
	h.progressMu.Unlock()
	close(ch)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Repo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// GetSession handles GET /api/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	session, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ListResumable handles GET /api/sessions/resumable, the set of sessions
// a caller (CLI or a future UI) can offer to resume.
func (h *Handler) ListResumable(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Repo.FindResumable(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// JobStats handles GET /api/jobs/stats.
func (h *Handler) JobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Queue.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RetryDeadLetter handles POST /api/jobs/{id}/retry.
func (h *Handler) RetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id required")
		return
	}

	newID, err := h.Queue.RetryDeadLetter(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": newID})
}

// Metrics handles GET /api/metrics, the Prometheus scrape endpoint.
func (h *Handler) Metrics() http.Handler {
	return metrics.Handler()
}

// sessionStatusEvent narrows orchestrator.ProgressFunc into a JSON shape
// for the SSE stream; kept separate from jobqueue.Event since the two
// describe different things (pipeline stage vs. post-ingest job).
type sessionStatusEvent struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id,omitempty"`
	Stage     orchestrator.Status `json:"stage,omitempty"`
	Index     int                 `json:"index,omitempty"`
	Total     int                 `json:"total,omitempty"`
	Filename  string              `json:"filename,omitempty"`
}
