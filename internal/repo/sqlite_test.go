package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func openTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	r, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func seedProject(t *testing.T, r *SQLiteRepo) {
	t.Helper()
	_, err := r.DB().Exec(`
		INSERT INTO projects (id, name, folder_name, working_root, key_dates)
		VALUES ('proj-1', 'Smith Wedding', 'smith-wedding', '/archive', '{}')
	`)
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
}

func TestFindByHashMissing(t *testing.T) {
	r := openTestRepo(t)
	rec, err := r.FindByHash(context.Background(), "deadbeefcafef00d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for unseen fingerprint, got %+v", rec)
	}
}

func TestCreateAndFindByHash(t *testing.T) {
	r := openTestRepo(t)
	seedProject(t, r)
	ctx := context.Background()

	width := 1920
	rec := FileRecord{
		ID:               "file-1",
		Fingerprint:      "0123456789abcdef",
		OriginalFilename: "clip0001.mp4",
		OriginalPath:     "/src/clip0001.mp4",
		ArchivePath:      "/archive/smith-wedding/source/modern/canon-r6/0123456789abcdef.mp4",
		Size:             1048576,
		Extension:        "mp4",
		Kind:             "video",
		Medium:           "modern",
		CameraID:         "cam-r6",
		ProjectID:        "proj-1",
		Width:            &width,
		ImportedAt:       1700000000,
	}

	if err := r.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.FindByHash(ctx, rec.Fingerprint)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.ID != rec.ID || got.ArchivePath != rec.ArchivePath {
		t.Fatalf("mismatch: got %+v", got)
	}
	if got.Width == nil || *got.Width != 1920 {
		t.Fatalf("expected width 1920, got %v", got.Width)
	}
}

func TestListByProject(t *testing.T) {
	r := openTestRepo(t)
	seedProject(t, r)
	ctx := context.Background()

	for i, fp := range []string{"aaaa111122223333", "bbbb111122223333"} {
		rec := FileRecord{
			ID:               fmt.Sprintf("file-%d", i),
			Fingerprint:      fp,
			OriginalFilename: fmt.Sprintf("clip%04d.mp4", i),
			OriginalPath:     fmt.Sprintf("/src/clip%04d.mp4", i),
			ArchivePath:      fmt.Sprintf("/archive/smith-wedding/source/modern/canon-r6/%s.mp4", fp),
			Size:             1024,
			Extension:        "mp4",
			Kind:             "video",
			Medium:           "modern",
			ProjectID:        "proj-1",
			ImportedAt:       1700000000,
		}
		if err := r.Create(ctx, rec); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	files, err := r.ListByProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("list by project: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}

	files, err = r.ListByProject(ctx, "no-such-project")
	if err != nil {
		t.Fatalf("list by project (missing): %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected 0 files for unknown project, got %d", len(files))
	}
}

func TestSaveMetadataAndUpdatePaths(t *testing.T) {
	r := openTestRepo(t)
	seedProject(t, r)
	ctx := context.Background()

	rec := FileRecord{
		ID: "file-2", Fingerprint: "fedcba9876543210", OriginalFilename: "a.mp4",
		OriginalPath: "/src/a.mp4", ArchivePath: "/archive/a.mp4", Size: 10,
		Extension: "mp4", Kind: "video", Medium: "modern", ProjectID: "proj-1", ImportedAt: 1,
	}
	if err := r.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	blobs := MetadataBlobs{"exif": []byte(`{"Make":"Canon"}`)}
	if err := r.SaveMetadata(ctx, rec.ID, blobs); err != nil {
		t.Fatalf("save metadata: %v", err)
	}
	if err := r.UpdateThumbnailPath(ctx, rec.ID, "/archive/thumbnails/x.jpg"); err != nil {
		t.Fatalf("update thumbnail: %v", err)
	}
	if err := r.UpdateProxyPath(ctx, rec.ID, "/archive/proxies/x.mp4"); err != nil {
		t.Fatalf("update proxy: %v", err)
	}

	got, err := r.FindByHash(ctx, rec.Fingerprint)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ThumbnailPath != "/archive/thumbnails/x.jpg" {
		t.Fatalf("thumbnail path not persisted: %+v", got)
	}
	if got.ProxyPath != "/archive/proxies/x.mp4" {
		t.Fatalf("proxy path not persisted: %+v", got)
	}
}

func TestTransactRollsBackOnError(t *testing.T) {
	r := openTestRepo(t)
	seedProject(t, r)
	ctx := context.Background()

	wantErr := context.Canceled
	err := r.Transact(ctx, func(f Files) error {
		if err := f.Create(ctx, FileRecord{
			ID: "file-3", Fingerprint: "aaaaaaaaaaaaaaaa", OriginalFilename: "b.mp4",
			OriginalPath: "/src/b.mp4", ArchivePath: "/archive/b.mp4", Size: 10,
			Extension: "mp4", Kind: "video", Medium: "modern", ProjectID: "proj-1", ImportedAt: 1,
		}); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	got, err := r.FindByHash(ctx, "aaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != nil {
		t.Fatalf("expected rollback to discard the row, found %+v", got)
	}
}

func TestCamerasFindAllWithPatterns(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	if _, err := r.DB().Exec(`
		INSERT INTO cameras (id, display_name, medium, make, model, active)
		VALUES ('cam-r6', 'Canon R6', 'modern', 'Canon', 'Canon EOS R6', 1)
	`); err != nil {
		t.Fatalf("seed camera: %v", err)
	}
	if _, err := r.DB().Exec(`
		INSERT INTO camera_patterns (camera_id, kind, glob, priority) VALUES ('cam-r6', 'filename', 'MVI_*.MP4', 10)
	`); err != nil {
		t.Fatalf("seed pattern: %v", err)
	}

	cameras, err := r.FindAllWithPatterns(ctx)
	if err != nil {
		t.Fatalf("find cameras: %v", err)
	}
	if len(cameras) != 1 {
		t.Fatalf("expected 1 camera, got %d", len(cameras))
	}
	if len(cameras[0].Patterns) != 1 || cameras[0].Patterns[0].Glob != "MVI_*.MP4" {
		t.Fatalf("expected pattern attached, got %+v", cameras[0])
	}
}

func TestSessionsUpsertCompleteAndFindResumable(t *testing.T) {
	r := openTestRepo(t)
	seedProject(t, r)
	ctx := context.Background()

	sess := SessionRecord{
		ID: "sess-1", ProjectID: "proj-1", Status: "copying", LastStage: 3,
		Resumable: true, SourcePaths: []string{"/mnt/card1"}, TotalFiles: 10, StartedAt: 1700000000,
	}
	if err := r.Upsert(ctx, sess); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resumable, err := r.FindResumable(ctx)
	if err != nil {
		t.Fatalf("find resumable: %v", err)
	}
	if len(resumable) != 1 || resumable[0].ID != "sess-1" {
		t.Fatalf("expected session listed as resumable, got %+v", resumable)
	}
	if len(resumable[0].SourcePaths) != 1 || resumable[0].SourcePaths[0] != "/mnt/card1" {
		t.Fatalf("source paths not round-tripped: %+v", resumable[0])
	}

	if err := r.Complete(ctx, "sess-1", "completed"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	resumable, err = r.FindResumable(ctx)
	if err != nil {
		t.Fatalf("find resumable after complete: %v", err)
	}
	if len(resumable) != 0 {
		t.Fatalf("expected no resumable sessions after completion, got %+v", resumable)
	}
}

func TestProjectsFindByID(t *testing.T) {
	r := openTestRepo(t)
	seedProject(t, r)
	ctx := context.Background()

	p, err := r.FindByID(ctx, "proj-1")
	if err != nil {
		t.Fatalf("find project: %v", err)
	}
	if p == nil || p.Name != "Smith Wedding" {
		t.Fatalf("unexpected project: %+v", p)
	}
}

func TestProjectsSaveUpserts(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	rec := ProjectRecord{
		ID: "proj-2", Name: "Jones Wedding", FolderName: "jones-wedding",
		WorkingRoot: "/archive", KeyDates: map[string]int64{"ceremony": 1700000000},
	}
	if err := r.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	p, err := r.FindByID(ctx, "proj-2")
	if err != nil {
		t.Fatalf("find project: %v", err)
	}
	if p == nil || p.Name != "Jones Wedding" || p.KeyDates["ceremony"] != 1700000000 {
		t.Fatalf("unexpected project: %+v", p)
	}

	rec.Name = "Jones-Smith Wedding"
	if err := r.Save(ctx, rec); err != nil {
		t.Fatalf("save update: %v", err)
	}
	p, err = r.FindByID(ctx, "proj-2")
	if err != nil {
		t.Fatalf("find project after update: %v", err)
	}
	if p.Name != "Jones-Smith Wedding" {
		t.Fatalf("expected upsert to update name, got %+v", p)
	}
}

func TestSessionsGetAndList(t *testing.T) {
	r := openTestRepo(t)
	seedProject(t, r)
	ctx := context.Background()

	sess := SessionRecord{ID: "sess-2", ProjectID: "proj-1", Status: "completed", StartedAt: 1700000100}
	if err := r.Upsert(ctx, sess); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := r.Get(ctx, "sess-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != "sess-2" {
		t.Fatalf("unexpected session: %+v", got)
	}

	missing, err := r.Get(ctx, "no-such-session")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing session, got %+v", missing)
	}

	all, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) == 0 {
		t.Fatalf("expected at least one session")
	}
}
