package api

import "net/http"

// NewRouter registers every handler on a fresh ServeMux, grounded on the
// teacher's internal/api/router.go method-pattern routing
// ("GET /path/{id}"), minus the static asset serving its embedded web UI
// needed and this repo does not (SPEC_FULL §C).
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/sessions", h.ListSessions)
	mux.HandleFunc("GET /api/sessions/resumable", h.ListResumable)
	mux.HandleFunc("GET /api/sessions/stream", h.SessionStream)
	mux.HandleFunc("GET /api/sessions/{id}", h.GetSession)

	mux.HandleFunc("GET /api/jobs/stats", h.JobStats)
	mux.HandleFunc("GET /api/jobs/stream", h.JobStream)
	mux.HandleFunc("POST /api/jobs/{id}/retry", h.RetryDeadLetter)

	mux.Handle("GET /api/metrics", h.Metrics())

	return mux
}
