// Package finalizer applies the strict step ordering spec.md §4.5
// describes for a validated entry: duplicate check, footage-type
// tagging, file-record insert, metadata persistence, sidecar write, and
// post-ingest job enqueue. The database portion (insert + metadata) runs
// inside one transaction via repo.Repo.Transact, so a failure there never
// leaves a partial row; this generalizes the teacher's single-statement
// job-completion writes in internal/store/sqlite.go to a multi-row,
// multi-table commit.
package finalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/logger"
	"github.com/nightfoxfilms/ingestcore/internal/metadata"
	"github.com/nightfoxfilms/ingestcore/internal/repo"
	"github.com/nightfoxfilms/ingestcore/internal/sidecar"

	"github.com/google/uuid"
)

// Entry is one validated file ready for finalization.
type Entry struct {
	Fingerprint      string
	OriginalFilename string
	OriginalPath     string
	ArchivePath      string
	Size             int64
	Extension        string
	Kind             string // video | audio | sidecar | other
	Medium           string
	CameraID         string
	CameraName       string
	Info             metadata.MediaInfo
	RawBlobs         map[string][]byte // provider name -> raw JSON
	ImportedAt       int64
}

// Result is the outcome of finalizing one entry.
type Result struct {
	Entry     Entry
	FileID    string
	Duplicate bool
	Err       error
}

// Finalizer wires the repository, job queue, and sidecar writer together
// for the finalize stage.
type Finalizer struct {
	repo         repo.Repo
	queue        *jobqueue.Queue
	generatorTag string

	// EnqueueIntegrity controls whether an integrity job is created per
	// finalized file; thumbnail/proxy/ml-extract depend on it when it is.
	EnqueueIntegrity bool
}

// New builds a Finalizer. generatorTag is stamped into every sidecar
// (spec.md §6 "Configuration" sidecar table).
func New(r repo.Repo, queue *jobqueue.Queue, generatorTag string) *Finalizer {
	return &Finalizer{repo: r, queue: queue, generatorTag: generatorTag, EnqueueIntegrity: true}
}

// Finalize processes each entry in order, stopping neither early nor
// retrying on a per-entry failure: a failed entry is counted as an error
// and the loop continues (spec.md §7 "Database-transaction failure in
// finalize: the single file is counted as an error; session continues").
func (f *Finalizer) Finalize(ctx context.Context, project repo.ProjectRecord, entries []Entry) []Result {
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		results = append(results, f.finalizeOne(ctx, project, entry))
	}
	return results
}

func (f *Finalizer) finalizeOne(ctx context.Context, project repo.ProjectRecord, entry Entry) Result {
	// Step 1: duplicate check.
	existing, err := f.repo.FindByHash(ctx, entry.Fingerprint)
	if err != nil {
		return Result{Entry: entry, Err: fmt.Errorf("finalizer: duplicate check: %w", err)}
	}
	if existing != nil {
		return Result{Entry: entry, FileID: existing.ID, Duplicate: true}
	}

	// Step 2: footage-type tag.
	footageType := classifyFootageType(entry.Info.RecordingAt, project.KeyDates)

	fileID := uuid.NewString()
	rec := repo.FileRecord{
		ID:               fileID,
		Fingerprint:      entry.Fingerprint,
		OriginalFilename: entry.OriginalFilename,
		OriginalPath:     entry.OriginalPath,
		ArchivePath:      entry.ArchivePath,
		Size:             entry.Size,
		Extension:        entry.Extension,
		Kind:             entry.Kind,
		Medium:           entry.Medium,
		CameraID:         entry.CameraID,
		CameraName:       entry.CameraName,
		ProjectID:        project.ID,
		FootageType:      footageType,
		Make:             entry.Info.Make,
		Model:            entry.Info.Model,
		Lens:             entry.Info.Lens,
		Width:            entry.Info.Width,
		Height:           entry.Info.Height,
		Duration:         entry.Info.Duration,
		FrameRate:        entry.Info.FrameRate,
		Codec:            entry.Info.Codec,
		BitRate:          entry.Info.BitRate,
		RecordingAt:      entry.Info.RecordingAt,
		ImportedAt:       entry.ImportedAt,
	}

	// Steps 3-4: insert file record and raw metadata, one transaction so
	// a failure partway through leaves no row behind.
	err = f.repo.Transact(ctx, func(files repo.Files) error {
		if err := files.Create(ctx, rec); err != nil {
			return fmt.Errorf("create file record: %w", err)
		}
		if len(entry.RawBlobs) > 0 {
			if err := files.SaveMetadata(ctx, fileID, repo.MetadataBlobs(entry.RawBlobs)); err != nil {
				return fmt.Errorf("save metadata: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{Entry: entry, Err: fmt.Errorf("finalizer: %w", err)}
	}
	if len(entry.RawBlobs) > 0 && f.queue != nil {
		f.queue.AssetReady(fileID, "", "metadata", rec.ArchivePath)
	}

	// Step 5: sidecar write.
	if err := f.writeSidecar(rec, project, entry); err != nil {
		logger.Warn("finalizer: sidecar write failed", "file_id", fileID, "error", err)
		return Result{Entry: entry, FileID: fileID, Err: fmt.Errorf("finalizer: write sidecar: %w", err)}
	}

	// Step 6: enqueue post-ingest jobs.
	if f.queue != nil {
		if err := f.enqueueJobs(ctx, fileID, project.ID); err != nil {
			return Result{Entry: entry, FileID: fileID, Err: fmt.Errorf("finalizer: enqueue jobs: %w", err)}
		}
	}

	return Result{Entry: entry, FileID: fileID}
}

func (f *Finalizer) writeSidecar(rec repo.FileRecord, project repo.ProjectRecord, entry Entry) error {
	blobs := make(map[string]json.RawMessage, len(entry.RawBlobs))
	for name, raw := range entry.RawBlobs {
		blobs[name] = json.RawMessage(raw)
	}

	var camSnapshot *sidecar.CameraSnapshot
	if rec.CameraID != "" {
		camSnapshot = &sidecar.CameraSnapshot{ID: rec.CameraID, DisplayName: rec.CameraName}
	}

	doc := sidecar.File{
		SchemaVersion:    sidecar.SchemaVersion,
		GeneratorTag:     f.generatorTag,
		GeneratedAt:      time.Now().UTC().Unix(),
		Fingerprint:      rec.Fingerprint,
		OriginalFilename: rec.OriginalFilename,
		OriginalPath:     rec.OriginalPath,
		ArchivePath:      rec.ArchivePath,
		Size:             rec.Size,
		Extension:        rec.Extension,
		Kind:             rec.Kind,
		FootageType:      rec.FootageType,
		Technical: sidecar.Technical{
			DurationMs: rec.Duration,
			Width:      rec.Width,
			Height:     rec.Height,
			FrameRate:  rec.FrameRate,
			Codec:      rec.Codec,
			BitRate:    rec.BitRate,
		},
		Detection: sidecar.Detection{
			Medium: rec.Medium,
			Make:   rec.Make,
			Model:  rec.Model,
			Lens:   rec.Lens,
		},
		Camera:      camSnapshot,
		Project:     &sidecar.ProjectSnapshot{ID: project.ID, Name: project.Name, FolderName: project.FolderName},
		RecordingAt: rec.RecordingAt,
		ImportedAt:  rec.ImportedAt,
		Metadata:    blobs,
	}

	return sidecar.WriteFile(doc)
}

// enqueueJobs creates the integrity/thumbnail/proxy/ml-extract job chain
// for a newly finalized file (spec.md §4.6 "Ingest-driven enqueue"). A
// disabled integrity stage removes the dependency edge rather than
// leaving a dangling reference. Every enqueue is attempted; the first
// error is returned.
func (f *Finalizer) enqueueJobs(ctx context.Context, fileID, projectID string) error {
	payload, _ := json.Marshal(struct {
		FileID string `json:"file_id"`
	}{FileID: fileID})

	var firstErr error
	var dependsOn string
	if f.EnqueueIntegrity {
		id, err := f.queue.Enqueue(ctx, jobqueue.KindIntegrity, payload, fileID, projectID, 0, "", 0)
		if err != nil {
			logger.Warn("finalizer: enqueue integrity job failed", "file_id", fileID, "error", err)
			firstErr = err
		} else {
			dependsOn = id
		}
	}

	for _, kind := range []jobqueue.Kind{jobqueue.KindThumbnail, jobqueue.KindProxy, jobqueue.KindMLExtract} {
		if _, err := f.queue.Enqueue(ctx, kind, payload, fileID, projectID, 0, dependsOn, 0); err != nil {
			logger.Warn("finalizer: enqueue job failed", "kind", string(kind), "file_id", fileID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

const dayDuration = 24 * time.Hour

// classifyFootageType compares a file's recording time against the
// project's key dates to produce one of the four footage-type tags
// spec.md §4.5 names. "ceremony" maps to project-day, "rehearsal" to
// rehearsal-day; anything strictly before the earliest known key date is
// date-night (pre-wedding footage shot the same trip); anything else is
// other. Unknown recording time or no key dates at all yields "other".
func classifyFootageType(recordingAt *int64, keyDates map[string]int64) string {
	if recordingAt == nil || len(keyDates) == 0 {
		return "other"
	}
	recorded := time.Unix(*recordingAt, 0).UTC()

	if ceremony, ok := keyDates["ceremony"]; ok && sameDay(recorded, time.Unix(ceremony, 0).UTC()) {
		return "project-day"
	}
	if rehearsal, ok := keyDates["rehearsal"]; ok && sameDay(recorded, time.Unix(rehearsal, 0).UTC()) {
		return "rehearsal-day"
	}

	earliest := int64(0)
	for _, v := range keyDates {
		if earliest == 0 || v < earliest {
			earliest = v
		}
	}
	if earliest != 0 && *recordingAt < earliest {
		return "date-night"
	}

	return "other"
}

func sameDay(a, b time.Time) bool {
	return a.Truncate(dayDuration).Equal(b.Truncate(dayDuration))
}
