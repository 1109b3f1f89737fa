package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nightfoxfilms/ingestcore/internal/camera"
	"github.com/nightfoxfilms/ingestcore/internal/copier"
	"github.com/nightfoxfilms/ingestcore/internal/finalizer"
	"github.com/nightfoxfilms/ingestcore/internal/hash"
	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/metadata"
	"github.com/nightfoxfilms/ingestcore/internal/repo"
	"github.com/nightfoxfilms/ingestcore/internal/storageprofile"
	"github.com/nightfoxfilms/ingestcore/internal/validator"

	_ "modernc.org/sqlite"
)

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusScanning, true},
		{StatusScanning, StatusHashing, true},
		{StatusHashing, StatusCopying, true},
		{StatusCopying, StatusValidating, true},
		{StatusValidating, StatusFinalizing, true},
		{StatusFinalizing, StatusCompleted, true},
		{StatusPending, StatusCopying, false},
		{StatusCopying, StatusPaused, true},
		{StatusPaused, StatusCopying, true},
		{StatusPaused, StatusScanning, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCancelled, StatusFailed, false},
		{StatusScanning, StatusCancelled, true},
		{StatusScanning, StatusFailed, true},
		{StatusHashing, StatusHashing, false},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

// fakeRepo is a minimal in-memory repo.Repo for orchestrator tests.
type fakeRepo struct {
	mu       sync.Mutex
	byHash   map[string]repo.FileRecord
	projects map[string]repo.ProjectRecord
	sessions map[string]repo.SessionRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byHash:   map[string]repo.FileRecord{},
		projects: map[string]repo.ProjectRecord{},
		sessions: map[string]repo.SessionRecord{},
	}
}

func (r *fakeRepo) FindByHash(ctx context.Context, fingerprint string) (*repo.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byHash[fingerprint]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (r *fakeRepo) Create(ctx context.Context, rec repo.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[rec.Fingerprint] = rec
	return nil
}

func (r *fakeRepo) SaveMetadata(ctx context.Context, fileID string, blobs repo.MetadataBlobs) error {
	return nil
}

func (r *fakeRepo) UpdateThumbnailPath(ctx context.Context, fileID, path string) error { return nil }
func (r *fakeRepo) UpdateProxyPath(ctx context.Context, fileID, path string) error     { return nil }

func (r *fakeRepo) ListByProject(ctx context.Context, projectID string) ([]repo.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repo.FileRecord
	for _, rec := range r.byHash {
		if rec.ProjectID == projectID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByFileID(ctx context.Context, id string) (*repo.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byHash {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindAllWithPatterns(ctx context.Context) ([]repo.CameraRecord, error) {
	return []repo.CameraRecord{
		{ID: "cam-default", DisplayName: "Unmatched", Medium: "modern", Default: true, Active: true},
	}, nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*repo.ProjectRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.projects[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *fakeRepo) Save(ctx context.Context, rec repo.ProjectRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[rec.ID] = rec
	return nil
}

func (r *fakeRepo) Upsert(ctx context.Context, rec repo.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[rec.ID] = rec
	return nil
}

func (r *fakeRepo) Complete(ctx context.Context, id, status string) error { return nil }

func (r *fakeRepo) FindResumable(ctx context.Context) ([]repo.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repo.SessionRecord
	for _, s := range r.sessions {
		if s.Resumable {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*repo.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *fakeRepo) List(ctx context.Context) ([]repo.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repo.SessionRecord, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeRepo) Transact(ctx context.Context, fn func(repo.Files) error) error {
	return fn(r)
}

func (r *fakeRepo) Close() error { return nil }

func newTestOrchestrator(t *testing.T, r *fakeRepo) *Orchestrator {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open queue db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	q, err := jobqueue.Open(db)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}

	return &Orchestrator{
		Repo:       r,
		Detector:   storageprofile.NewDetector(),
		Metadata:   metadata.NewProviderSet(),
		Identifier: camera.New(nil),
		Queue:      q,
		Finalizer:  finalizer.New(r, q, "ingestcore-test"),
		Validator:  validator.New(validator.Options{AutoRollback: true}),
	}
}

func testProject(t *testing.T) repo.ProjectRecord {
	t.Helper()
	return repo.ProjectRecord{
		ID:          "proj-1",
		Name:        "Smith Wedding",
		FolderName:  "smith-wedding",
		WorkingRoot: t.TempDir(),
	}
}

func TestRunImportHappyPath(t *testing.T) {
	sourceDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(sourceDir, "clip.mp4"), []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	r := newFakeRepo()
	o := newTestOrchestrator(t, r)
	project := testProject(t)
	r.projects[project.ID] = project

	session, err := o.RunImport(context.Background(), project, []string{sourceDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Status != string(StatusCompleted) {
		t.Fatalf("expected completed session, got %s (last error: %s)", session.Status, session.LastError)
	}
	if session.ProcessedFiles != 1 {
		t.Fatalf("expected 1 processed file, got %d", session.ProcessedFiles)
	}
	if len(r.byHash) != 1 {
		t.Fatalf("expected 1 finalized file record, got %d", len(r.byHash))
	}

	manifestPath := filepath.Join(project.WorkingRoot, project.FolderName, "documents", "manifest.json")
	if _, err := os.Stat(manifestPath); err != nil {
		t.Fatalf("expected manifest to be written: %v", err)
	}
}

func TestRunImportSkipsAlreadyArchivedDuplicate(t *testing.T) {
	sourceDir := t.TempDir()
	content := []byte("already archived")
	if err := os.WriteFile(filepath.Join(sourceDir, "clip.mp4"), content, 0644); err != nil {
		t.Fatal(err)
	}

	r := newFakeRepo()
	o := newTestOrchestrator(t, r)
	project := testProject(t)
	r.projects[project.ID] = project

	fp, err := hash.Fingerprint(filepath.Join(sourceDir, "clip.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	r.byHash[fp] = repo.FileRecord{ID: "existing-id", Fingerprint: fp, ProjectID: project.ID}

	session, err := o.RunImport(context.Background(), project, []string{sourceDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.DuplicateFiles != 1 {
		t.Fatalf("expected 1 duplicate, got %d", session.DuplicateFiles)
	}
	if session.ProcessedFiles != 0 {
		t.Fatalf("expected no new copy for a duplicate, got %d processed", session.ProcessedFiles)
	}
}

func TestCopyStageTransitionsToPausedOnNetworkFailure(t *testing.T) {
	sourceDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(sourceDir, "clip.mp4"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	r := newFakeRepo()
	o := newTestOrchestrator(t, r)
	project := testProject(t)
	r.projects[project.ID] = project

	prev := newCopyEngine
	newCopyEngine = func(profile storageprofile.Profile, opts copier.Options) copyEngine {
		return fakeFailingEngine{}
	}
	t.Cleanup(func() { newCopyEngine = prev })

	session, err := o.RunImport(context.Background(), project, []string{sourceDir})
	if err != nil {
		t.Fatalf("unexpected hard error (expected a pause instead): %v", err)
	}
	if session.Status != string(StatusPaused) {
		t.Fatalf("expected paused session, got %s", session.Status)
	}
	if !session.Resumable {
		t.Fatalf("expected paused session to be resumable")
	}
}

func TestResumeAfterPauseCompletesImport(t *testing.T) {
	sourceDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(sourceDir, "clip.mp4"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	r := newFakeRepo()
	o := newTestOrchestrator(t, r)
	project := testProject(t)
	r.projects[project.ID] = project

	prev := newCopyEngine
	newCopyEngine = func(profile storageprofile.Profile, opts copier.Options) copyEngine {
		return fakeFailingEngine{}
	}

	session, err := o.RunImport(context.Background(), project, []string{sourceDir})
	if err != nil {
		t.Fatalf("unexpected hard error (expected a pause instead): %v", err)
	}
	if session.Status != string(StatusPaused) {
		t.Fatalf("expected paused session, got %s", session.Status)
	}

	newCopyEngine = prev
	resumed, err := o.Resume(context.Background(), *session, project)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.Status != string(StatusCompleted) {
		t.Fatalf("expected completed session after resume, got %s (last error: %s)", resumed.Status, resumed.LastError)
	}
	if resumed.ProcessedFiles != 1 {
		t.Fatalf("expected 1 processed file after resume, got %d", resumed.ProcessedFiles)
	}
}

// fakeFailingEngine simulates a copy run tripping the consecutive-
// network-failure threshold, without needing a real flaky filesystem.
type fakeFailingEngine struct{}

func (fakeFailingEngine) Copy(ctx context.Context, entries []copier.Entry, resolve copier.Resolver, progress copier.ProgressFunc) ([]copier.FileResult, error) {
	results := make([]copier.FileResult, len(entries))
	for i, e := range entries {
		results[i] = copier.FileResult{Entry: e, Err: errConnReset}
	}
	return results, &copier.NetworkFailureError{ConsecutiveFailures: len(entries), LastErr: errConnReset}
}

var errConnReset = errors.New("connection reset by peer")

// TestFinalizeStageCreditsDuplicateNotProcessed covers the case a
// network-sourced file's fingerprint only collides with an already
// archived file once it reaches finalize, since hashStage never ran a
// dedup check against it. The file must land in DuplicateFiles, not
// ProcessedFiles.
func TestFinalizeStageCreditsDuplicateNotProcessed(t *testing.T) {
	r := newFakeRepo()
	o := newTestOrchestrator(t, r)
	project := testProject(t)
	r.projects[project.ID] = project
	r.byHash["existing-fp"] = repo.FileRecord{ID: "existing-id", Fingerprint: "existing-fp", ProjectID: project.ID}

	files := map[string]*fileState{
		"/src/clip.mp4": {
			scanned:     ScannedFile{OriginalPath: "/src/clip.mp4", Filename: "clip.mp4", Extension: "mp4", Kind: "video"},
			fingerprint: "existing-fp",
			archivePath: filepath.Join(project.WorkingRoot, project.FolderName, "source", "modern", "cam", "existing-fp.mp4"),
			valid:       true,
		},
	}

	session := &repo.SessionRecord{ID: "sess-1", ProjectID: project.ID}
	o.finalizeStage(context.Background(), session, project, files)

	if session.DuplicateFiles != 1 {
		t.Fatalf("expected 1 duplicate, got %d", session.DuplicateFiles)
	}
	if session.ProcessedFiles != 0 {
		t.Fatalf("expected duplicate to not be credited as processed, got %d", session.ProcessedFiles)
	}
	if session.ErrorFiles != 0 {
		t.Fatalf("expected no errors, got %d", session.ErrorFiles)
	}
}

// TestFinalizeStageCreditsProcessedOnlyOnSuccess is the complement of
// TestFinalizeStageCreditsDuplicateNotProcessed: a file with a fresh
// fingerprint (no collision) is credited to ProcessedFiles exactly once,
// at finalize, not earlier at copy.
func TestFinalizeStageCreditsProcessedOnlyOnSuccess(t *testing.T) {
	r := newFakeRepo()
	o := newTestOrchestrator(t, r)
	project := testProject(t)
	r.projects[project.ID] = project

	files := map[string]*fileState{
		"/src/clip.mp4": {
			scanned:     ScannedFile{OriginalPath: "/src/clip.mp4", Filename: "clip.mp4", Extension: "mp4", Kind: "video"},
			fingerprint: "fresh-fp",
			archivePath: filepath.Join(project.WorkingRoot, project.FolderName, "source", "modern", "cam", "fresh-fp.mp4"),
			valid:       true,
		},
	}

	session := &repo.SessionRecord{ID: "sess-2", ProjectID: project.ID}
	o.finalizeStage(context.Background(), session, project, files)

	if session.ProcessedFiles != 1 {
		t.Fatalf("expected 1 processed file, got %d", session.ProcessedFiles)
	}
	if session.ErrorFiles != 0 || session.DuplicateFiles != 0 {
		t.Fatalf("expected no errors or duplicates, got errors=%d duplicates=%d", session.ErrorFiles, session.DuplicateFiles)
	}
}

func TestReapTempFilesRemovesOrphans(t *testing.T) {
	project := testProject(t)
	sourceDir := filepath.Join(project.WorkingRoot, project.FolderName, "source", "modern", "cam")
	if err := os.MkdirAll(sourceDir, 0755); err != nil {
		t.Fatal(err)
	}
	orphan := filepath.Join(sourceDir, "tmp_1700000000_abc123.tmp")
	kept := filepath.Join(sourceDir, "fp-value.mp4")
	if err := os.WriteFile(orphan, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(kept, []byte("final"), 0644); err != nil {
		t.Fatal(err)
	}

	reaped, err := ReapTempFiles(project)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected 1 reaped file, got %d", reaped)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("expected orphaned temp file to be removed")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("expected finalized file to survive the reap: %v", err)
	}
}

func TestReapTempFilesToleratesMissingSourceDir(t *testing.T) {
	project := testProject(t)
	reaped, err := ReapTempFiles(project)
	if err != nil {
		t.Fatalf("unexpected error for a project with no source dir yet: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("expected 0 reaped files, got %d", reaped)
	}
}
