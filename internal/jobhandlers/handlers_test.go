package jobhandlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/nightfoxfilms/ingestcore/internal/bgservice"
	"github.com/nightfoxfilms/ingestcore/internal/ffmpeg"
	"github.com/nightfoxfilms/ingestcore/internal/hash"
	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/repo"

	_ "modernc.org/sqlite"
)

func newTestHandlers(t *testing.T) (*Handlers, *repo.SQLiteRepo, *jobqueue.Queue) {
	t.Helper()
	dir := t.TempDir()
	r, err := repo.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	q, err := jobqueue.Open(r.DB())
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}

	h := &Handlers{
		Repo:               r,
		Queue:              q,
		Transcoder:         ffmpeg.NewTranscoder("ffmpeg"),
		ProxyMaxHeight:     180,
		ThumbnailAtSeconds: 0,
	}
	return h, r, q
}

func seedFile(t *testing.T, r *repo.SQLiteRepo, archivePath, fingerprint, kind string) repo.FileRecord {
	t.Helper()
	ctx := context.Background()
	if err := r.Save(ctx, repo.ProjectRecord{ID: "proj-1", Name: "Smith Wedding", FolderName: "smith-wedding", WorkingRoot: filepath.Dir(archivePath)}); err != nil {
		t.Fatalf("save project: %v", err)
	}
	rec := repo.FileRecord{
		ID:               "file-1",
		Fingerprint:      fingerprint,
		OriginalFilename: filepath.Base(archivePath),
		OriginalPath:     archivePath,
		ArchivePath:      archivePath,
		Size:             1,
		Extension:        filepath.Ext(archivePath),
		Kind:             kind,
		Medium:           "modern",
		ProjectID:        "proj-1",
		ImportedAt:       time.Now().Unix(),
	}
	if err := r.Create(ctx, rec); err != nil {
		t.Fatalf("create file: %v", err)
	}
	return rec
}

func enqueueFor(t *testing.T, q *jobqueue.Queue, kind jobqueue.Kind, fileID string) jobqueue.Job {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"file_id": fileID})
	id, err := q.Enqueue(context.Background(), kind, payload, fileID, "proj-1", 0, "", 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := q.Claim(context.Background(), kind)
	if err != nil || job == nil {
		t.Fatalf("claim: %v (job=%v, enqueued=%s)", err, job, id)
	}
	return *job
}

func TestIntegritySucceedsOnMatchingFingerprint(t *testing.T) {
	h, r, q := newTestHandlers(t)
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "smith-wedding", "source", "modern", "cam", "clip.mp4")
	os.MkdirAll(filepath.Dir(archivePath), 0755)
	if err := os.WriteFile(archivePath, []byte("archived bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	fp, err := hash.Fingerprint(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	rec := seedFile(t, r, archivePath, fp, "video")
	job := enqueueFor(t, q, jobqueue.KindIntegrity, rec.ID)

	if err := h.Integrity(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIntegrityFailsOnMismatch(t *testing.T) {
	h, r, q := newTestHandlers(t)
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "smith-wedding", "source", "modern", "cam", "clip.mp4")
	os.MkdirAll(filepath.Dir(archivePath), 0755)
	if err := os.WriteFile(archivePath, []byte("archived bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	rec := seedFile(t, r, archivePath, "deliberately-wrong-fingerprint", "video")
	job := enqueueFor(t, q, jobqueue.KindIntegrity, rec.ID)

	if err := h.Integrity(context.Background(), job); err == nil {
		t.Fatal("expected a fingerprint mismatch error")
	}
}

func TestEnhancementAlwaysSucceeds(t *testing.T) {
	h, r, q := newTestHandlers(t)
	rec := seedFile(t, r, filepath.Join(t.TempDir(), "smith-wedding", "source", "modern", "cam", "clip.mp4"), "fp", "video")
	os.MkdirAll(filepath.Dir(rec.ArchivePath), 0755)
	os.WriteFile(rec.ArchivePath, []byte("x"), 0644)
	job := enqueueFor(t, q, jobqueue.KindEnhancement, rec.ID)

	if err := h.Enhancement(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestThumbnailSkipsNonVideoKind(t *testing.T) {
	h, r, q := newTestHandlers(t)
	archivePath := filepath.Join(t.TempDir(), "smith-wedding", "source", "modern", "cam", "photo.jpg")
	os.MkdirAll(filepath.Dir(archivePath), 0755)
	os.WriteFile(archivePath, []byte("x"), 0644)
	rec := seedFile(t, r, archivePath, "fp", "photo")
	job := enqueueFor(t, q, jobqueue.KindThumbnail, rec.ID)

	if err := h.Thumbnail(context.Background(), job); err != nil {
		t.Fatalf("unexpected error for non-video kind: %v", err)
	}
}

func TestMLExtractPostsArchivePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Path string `json:"path"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotPath = body.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	healthSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthSrv.Close()

	h, r, q := newTestHandlers(t)
	archivePath := filepath.Join(t.TempDir(), "smith-wedding", "source", "modern", "cam", "clip.mp4")
	os.MkdirAll(filepath.Dir(archivePath), 0755)
	os.WriteFile(archivePath, []byte("x"), 0644)
	rec := seedFile(t, r, archivePath, "fp", "video")

	h.MLExtractURL = srv.URL
	h.ML = bgservice.New(bgservice.Options{
		BinaryPath: helperBinary(t),
		Args:       []string{"5"},
		HealthURL:  healthSrv.URL,
	})
	// Point the supervised "binary" at a no-op so Start succeeds without a
	// real ML extractor; this test only exercises the HTTP round trip.
	t.Cleanup(func() { h.ML.Stop() })

	job := enqueueFor(t, q, jobqueue.KindMLExtract, rec.ID)
	if err := h.MLExtract(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != archivePath {
		t.Fatalf("expected extractor to receive %s, got %s", archivePath, gotPath)
	}
}

// helperBinary returns a long-lived no-op subprocess bgservice can
// supervise without depending on a real ML extractor binary being
// present on the test machine.
func helperBinary(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("no sleep binary available to stand in for the ML extractor")
	}
	return path
}
