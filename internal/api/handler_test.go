package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/repo"

	_ "modernc.org/sqlite"
)

func newTestHandler(t *testing.T) (*Handler, repo.Repo) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "api-test.db")

	r, err := repo.Open(dbPath)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	q, err := jobqueue.Open(r.DB())
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return NewHandler(r, q), r
}

func TestGetSessionNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListSessionsEmpty(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetSessionFound(t *testing.T) {
	h, r := newTestHandler(t)
	mux := NewRouter(h)

	session := repo.SessionRecord{ID: "sess-1", ProjectID: "proj-1", Status: "completed"}
	if err := r.Upsert(context.Background(), session); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
