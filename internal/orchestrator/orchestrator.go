// Orchestrator drives one import session through scan, hash, copy,
// validate, and finalize, persisting the session row at every stage
// boundary. Grounded on the teacher's internal/jobs/queue.go worker loop:
// that package runs one job through ffmpeg and writes its row back after
// every state change; this generalizes the same persist-on-every-
// transition discipline to a five-stage pipeline spanning several
// subsystems instead of one external command.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nightfoxfilms/ingestcore/internal/camera"
	"github.com/nightfoxfilms/ingestcore/internal/copier"
	"github.com/nightfoxfilms/ingestcore/internal/finalizer"
	"github.com/nightfoxfilms/ingestcore/internal/hash"
	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/logger"
	"github.com/nightfoxfilms/ingestcore/internal/metadata"
	"github.com/nightfoxfilms/ingestcore/internal/metrics"
	"github.com/nightfoxfilms/ingestcore/internal/repo"
	"github.com/nightfoxfilms/ingestcore/internal/sidecar"
	"github.com/nightfoxfilms/ingestcore/internal/storageprofile"
	"github.com/nightfoxfilms/ingestcore/internal/validator"
)

// ProgressFunc reports pipeline progress to a caller (CLI progress bar,
// SSE stream). stage is the Status the work belongs to.
type ProgressFunc func(stage Status, index, total int, filename string)

// SessionEventFunc reports one of the session-level event names spec.md
// §6 names: "import:complete", "import:paused", "import:error".
// ("import:progress" rides the ProgressFunc instead, at per-file
// granularity.)
type SessionEventFunc func(sessionID, event string)

// Orchestrator wires the repository and every pipeline stage together.
type Orchestrator struct {
	Repo       repo.Repo
	Detector   *storageprofile.Detector
	Metadata   *metadata.ProviderSet
	Identifier *camera.Identifier
	Queue      *jobqueue.Queue
	Finalizer  *finalizer.Finalizer
	Validator  *validator.Validator

	CopyOptions copier.Options

	Progress     ProgressFunc
	SessionEvent SessionEventFunc
}

func (o *Orchestrator) emitSessionEvent(sessionID, event string) {
	if o.SessionEvent != nil {
		o.SessionEvent(sessionID, event)
	}
}

// copyEngine is the subset of *copier.Engine the copy stage needs.
// Exists as a seam so tests can substitute a fake engine to exercise the
// pause-on-network-failure path without reproducing a real transient I/O
// error on disk.
type copyEngine interface {
	Copy(ctx context.Context, entries []copier.Entry, resolve copier.Resolver, progress copier.ProgressFunc) ([]copier.FileResult, error)
}

var newCopyEngine = func(profile storageprofile.Profile, opts copier.Options) copyEngine {
	return copier.New(profile, opts)
}

// fileState threads one scanned file through every stage, keyed by its
// original absolute path.
type fileState struct {
	scanned     ScannedFile
	fingerprint string // set at hash stage for local sources, at copy for network
	info        metadata.MediaInfo
	rawBlobs    map[string][]byte
	camera      camera.Result
	archivePath string
	duplicate   bool
	existingID  string
	valid       bool
}

func (o *Orchestrator) report(stage Status, index, total int, filename string) {
	if o.Progress != nil {
		o.Progress(stage, index, total, filename)
	}
}

// RunImport creates a new session for sourcePaths and drives it through
// every stage to completion (or to paused/failed). It returns the final
// session record.
func (o *Orchestrator) RunImport(ctx context.Context, project repo.ProjectRecord, sourcePaths []string) (*repo.SessionRecord, error) {
	session := repo.SessionRecord{
		ID:          uuid.NewString(),
		ProjectID:   project.ID,
		Status:      string(StatusPending),
		SourcePaths: sourcePaths,
		ArchivePath: filepath.Join(project.WorkingRoot, project.FolderName),
		StartedAt:   time.Now().Unix(),
	}
	if err := o.Repo.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("orchestrator: create session: %w", err)
	}
	metrics.SessionsByStatus.WithLabelValues(session.Status).Inc()

	if reaped, err := ReapTempFiles(project); err != nil {
		logger.Warn("orchestrator: temp file reap failed", "project", project.FolderName, "error", err)
	} else if reaped > 0 {
		logger.Info("orchestrator: reaped orphaned temp files", "project", project.FolderName, "count", reaped)
	}

	return o.run(ctx, &session, project, nil, StageScan)
}

// ReapTempFiles removes tmp_<epoch>_<uuid>.tmp files copier.copyOne left
// behind in project's source tree by a crash or a cancelled run (spec.md
// §3 invariant "temp files ... removed on the next orchestrator
// start-up"). A promoted file is always renamed off this prefix before
// copyOne returns, so anything still named tmp_* here never completed.
func ReapTempFiles(project repo.ProjectRecord) (int, error) {
	root := filepath.Join(project.WorkingRoot, project.FolderName, "source")
	reaped := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasPrefix(d.Name(), "tmp_") {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("remove %s: %w", path, rmErr)
		}
		reaped++
		return nil
	})
	if err != nil {
		return reaped, fmt.Errorf("orchestrator: reap temp files: %w", err)
	}
	return reaped, nil
}

// Resume re-enters a previously paused or interrupted session at its
// recorded stage. No per-file state survives a process restart, so for
// any stage past scan this re-scans session.SourcePaths itself before
// handing the rebuilt file list to run — safe because every later stage
// re-checks for already-archived duplicates, and a resume past the hash
// stage only happens for the network profile that skips it anyway (its
// fingerprint falls out of the copy stage's inline hash instead).
func (o *Orchestrator) Resume(ctx context.Context, session repo.SessionRecord, project repo.ProjectRecord) (*repo.SessionRecord, error) {
	if !session.Resumable {
		return nil, fmt.Errorf("orchestrator: session %s is not resumable", session.ID)
	}

	if reaped, err := ReapTempFiles(project); err != nil {
		logger.Warn("orchestrator: temp file reap failed", "project", project.FolderName, "error", err)
	} else if reaped > 0 {
		logger.Info("orchestrator: reaped orphaned temp files", "project", project.FolderName, "count", reaped)
	}

	stage := Stage(session.LastStage)
	if stage < StageScan || stage > StageFinalize {
		stage = StageScan
	}

	var files map[string]*fileState
	if stage > StageScan {
		scanned, err := Scan(ctx, session.SourcePaths)
		if err != nil {
			return o.fail(ctx, &session, fmt.Errorf("resume: rescan: %w", err))
		}
		files = make(map[string]*fileState, len(scanned))
		for _, sf := range scanned {
			files[sf.OriginalPath] = &fileState{scanned: sf}
		}
		session.TotalFiles = len(files)
	}
	return o.run(ctx, &session, project, files, stage)
}

// run drives session through stages [startAt, StageFinalize]. files is
// only non-nil when resuming with an already-built file list; nil
// triggers a fresh scan.
func (o *Orchestrator) run(ctx context.Context, session *repo.SessionRecord, project repo.ProjectRecord, files map[string]*fileState, startAt Stage) (*repo.SessionRecord, error) {
	if files == nil {
		files = map[string]*fileState{}
	}

	if startAt <= StageScan {
		if err := o.transition(ctx, session, StatusScanning, StageScan); err != nil {
			return session, err
		}
		scanned, err := Scan(ctx, session.SourcePaths)
		if err != nil {
			return o.fail(ctx, session, fmt.Errorf("scan: %w", err))
		}
		for _, sf := range scanned {
			files[sf.OriginalPath] = &fileState{scanned: sf}
		}
		session.TotalFiles = len(files)
		o.persist(ctx, session)
	}

	if startAt <= StageHash {
		if err := o.transition(ctx, session, StatusHashing, StageHash); err != nil {
			return session, err
		}
		if err := o.hashStage(ctx, session, files); err != nil {
			return o.fail(ctx, session, fmt.Errorf("hash: %w", err))
		}
	}

	if startAt <= StageCopy {
		if err := o.transition(ctx, session, StatusCopying, StageCopy); err != nil {
			return session, err
		}
		paused, err := o.copyStage(ctx, session, project, files)
		if err != nil {
			return o.fail(ctx, session, fmt.Errorf("copy: %w", err))
		}
		if paused {
			o.emitSessionEvent(session.ID, "import:paused")
			return session, nil
		}
	}

	if startAt <= StageValidate {
		if err := o.transition(ctx, session, StatusValidating, StageValidate); err != nil {
			return session, err
		}
		o.validateStage(ctx, session, files)
	}

	if startAt <= StageFinalize {
		if err := o.transition(ctx, session, StatusFinalizing, StageFinalize); err != nil {
			return session, err
		}
		o.finalizeStage(ctx, session, project, files)
		if err := o.refreshManifest(ctx, project); err != nil {
			logger.Warn("orchestrator: manifest refresh failed", "project_id", project.ID, "error", err)
		}
	}

	from := Status(session.Status)
	session.Status = string(StatusCompleted)
	now := time.Now().Unix()
	session.CompletedAt = &now
	session.Resumable = false
	o.persist(ctx, session)
	metrics.SessionsByStatus.WithLabelValues(string(from)).Dec()
	metrics.SessionsByStatus.WithLabelValues(string(StatusCompleted)).Inc()
	o.emitSessionEvent(session.ID, "import:complete")
	return session, nil
}

// transition validates and applies a status change, persisting the
// session immediately (spec.md §4.9: every transition is durable before
// the next stage starts doing I/O).
func (o *Orchestrator) transition(ctx context.Context, session *repo.SessionRecord, to Status, stage Stage) error {
	from := Status(session.Status)
	if !canTransition(from, to) {
		return &ErrInvalidTransition{From: from, To: to}
	}
	session.Status = string(to)
	session.LastStage = int(stage)
	session.Resumable = resumable(to)
	o.persist(ctx, session)

	if from != "" {
		metrics.SessionsByStatus.WithLabelValues(string(from)).Dec()
	}
	metrics.SessionsByStatus.WithLabelValues(string(to)).Inc()

	return nil
}

func (o *Orchestrator) persist(ctx context.Context, session *repo.SessionRecord) {
	if err := o.Repo.Upsert(ctx, *session); err != nil {
		logger.Warn("orchestrator: session persist failed", "session_id", session.ID, "error", err)
	}
}

func (o *Orchestrator) fail(ctx context.Context, session *repo.SessionRecord, cause error) (*repo.SessionRecord, error) {
	from := Status(session.Status)
	session.LastError = cause.Error()
	if canTransition(from, StatusFailed) {
		session.Status = string(StatusFailed)
	}
	session.Resumable = false
	o.persist(ctx, session)
	if Status(session.Status) != from {
		metrics.SessionsByStatus.WithLabelValues(string(from)).Dec()
		metrics.SessionsByStatus.WithLabelValues(session.Status).Inc()
	}
	o.emitSessionEvent(session.ID, "import:error")
	return session, cause
}

// hashStage fingerprints every local-profile file up front (pre-hashed
// mode for the copy stage) and skips files whose fingerprint already
// exists in the archive, marking them duplicates before a single byte is
// copied. Network-profile files are left unhashed: their fingerprint
// falls out of the copy itself (spec.md §4.1, §4.2).
func (o *Orchestrator) hashStage(ctx context.Context, session *repo.SessionRecord, files map[string]*fileState) error {
	i := 0
	for path, st := range files {
		i++
		if ctx.Err() != nil {
			return ctx.Err()
		}

		profile := o.Detector.Detect(path)
		if profile.Kind != storageprofile.KindLocal {
			o.report(StatusHashing, i, len(files), st.scanned.Filename)
			continue
		}

		fp, err := hash.Fingerprint(path)
		if err != nil {
			logger.Warn("orchestrator: hash failed", "path", path, "error", err)
			session.ErrorFiles++
			continue
		}
		st.fingerprint = fp

		if existing, err := o.Repo.FindByHash(ctx, fp); err == nil && existing != nil {
			st.duplicate = true
			st.existingID = existing.ID
			session.DuplicateFiles++
			metrics.FilesProcessedTotal.WithLabelValues("duplicate").Inc()
			logger.Debug("orchestrator: skipping already-archived file", "path", path, "existing_file_id", existing.ID)
		}

		o.report(StatusHashing, i, len(files), st.scanned.Filename)
	}
	o.persist(ctx, session)
	return nil
}

// copyStage resolves camera/metadata for every non-duplicate file, then
// copies the batch through one Engine built from the profile detected for
// the session's source paths. A *copier.NetworkFailureError pauses the
// session instead of failing it (spec.md §4.2, §4.9).
func (o *Orchestrator) copyStage(ctx context.Context, session *repo.SessionRecord, project repo.ProjectRecord, files map[string]*fileState) (paused bool, err error) {
	cameras, err := o.Repo.FindAllWithPatterns(ctx)
	if err != nil {
		return false, fmt.Errorf("load cameras: %w", err)
	}
	camRecords := toCameraRecords(cameras)

	entries := make([]copier.Entry, 0, len(files))
	stateByPath := map[string]*fileState{}

	for path, st := range files {
		if st.duplicate {
			continue
		}

		info, used := o.Metadata.Probe(ctx, path)
		st.info = info
		st.rawBlobs = o.Metadata.RawBlobs(ctx, path)
		st.camera = o.Identifier.Identify(path, info, camRecords)
		if len(used) == 0 {
			logger.Debug("orchestrator: no metadata provider matched", "path", path)
		}

		entries = append(entries, copier.Entry{
			OriginalPath:     path,
			OriginalFilename: st.scanned.Filename,
			Size:             st.scanned.Size,
			Extension:        st.scanned.Extension,
			Fingerprint:      st.fingerprint,
		})
		stateByPath[path] = st
	}

	if len(entries) == 0 {
		return false, nil
	}

	profile := o.Detector.Detect(session.SourcePaths[0])
	opts := o.CopyOptions
	opts.WorkingRoot = project.WorkingRoot
	opts.ProjectFolder = project.FolderName
	engine := newCopyEngine(profile, opts)

	resolver := func(e copier.Entry) (copier.Resolved, error) {
		st := stateByPath[e.OriginalPath]
		return copier.Resolved{Medium: string(st.camera.Medium), CameraSlug: camera.Slug(st.camera.Name)}, nil
	}

	results, copyErr := engine.Copy(ctx, entries, resolver, func(index, total int, filename string) {
		o.report(StatusCopying, index, total, filename)
	})

	for _, res := range results {
		st := stateByPath[res.Entry.OriginalPath]
		if st == nil {
			continue
		}
		if res.Err != nil {
			session.ErrorFiles++
			metrics.FilesProcessedTotal.WithLabelValues("error").Inc()
			logger.Warn("orchestrator: copy failed", "path", res.Entry.OriginalPath, "error", res.Err)
			continue
		}
		if res.Fingerprint != "" {
			st.fingerprint = res.Fingerprint
		}
		st.archivePath = res.ArchivePath
		session.ProcessedBytes += res.BytesCopied
		metrics.BytesCopiedTotal.Add(float64(res.BytesCopied))
	}
	o.persist(ctx, session)

	if copyErr != nil {
		var netErr *copier.NetworkFailureError
		if errors.As(copyErr, &netErr) {
			session.LastError = netErr.Error()
			if terr := o.transition(ctx, session, StatusPaused, StageCopy); terr != nil {
				return false, terr
			}
			return true, nil
		}
		return false, copyErr
	}

	return false, nil
}

// validateStage re-hashes every copied file and rolls back mismatches.
func (o *Orchestrator) validateStage(ctx context.Context, session *repo.SessionRecord, files map[string]*fileState) {
	entries := make([]validator.Entry, 0, len(files))
	stateByPath := map[string]*fileState{}
	for path, st := range files {
		if st.duplicate || st.archivePath == "" {
			continue
		}
		entries = append(entries, validator.Entry{
			ArchivePath:         st.archivePath,
			ExpectedFingerprint: st.fingerprint,
			OriginalFilename:    st.scanned.Filename,
		})
		stateByPath[st.archivePath] = st
	}

	results := o.Validator.Validate(ctx, entries, func(index, total int, filename string) {
		o.report(StatusValidating, index, total, filename)
	})

	for _, res := range results {
		st := stateByPath[res.Entry.ArchivePath]
		if st == nil {
			continue
		}
		if res.Err != nil {
			session.ErrorFiles++
			continue
		}
		st.valid = res.Valid
		if !res.Valid {
			session.ErrorFiles++
		}
	}
	o.persist(ctx, session)
}

// finalizeStage builds finalizer entries for every validated, non-
// duplicate file and hands them to the Finalizer.
func (o *Orchestrator) finalizeStage(ctx context.Context, session *repo.SessionRecord, project repo.ProjectRecord, files map[string]*fileState) {
	entries := make([]finalizer.Entry, 0, len(files))
	for path, st := range files {
		if st.duplicate || !st.valid {
			continue
		}
		entries = append(entries, finalizer.Entry{
			Fingerprint:      st.fingerprint,
			OriginalFilename: st.scanned.Filename,
			OriginalPath:     path,
			ArchivePath:      st.archivePath,
			Size:             st.scanned.Size,
			Extension:        st.scanned.Extension,
			Kind:             st.scanned.Kind,
			Medium:           string(st.camera.Medium),
			CameraID:         st.camera.CameraID,
			CameraName:       st.camera.Name,
			Info:             st.info,
			RawBlobs:         st.rawBlobs,
			ImportedAt:       time.Now().Unix(),
		})
	}

	if len(entries) == 0 {
		return
	}

	results := o.Finalizer.Finalize(ctx, project, entries)
	for _, res := range results {
		switch {
		case res.Err != nil:
			session.ErrorFiles++
			metrics.FilesProcessedTotal.WithLabelValues("error").Inc()
			logger.Warn("orchestrator: finalize failed", "path", res.Entry.OriginalPath, "error", res.Err)
		case res.Duplicate:
			// Reached for network-sourced files, whose fingerprint
			// hashStage skips, and for a file whose content matches an
			// earlier file of the same batch, since hashStage only checks
			// files already in the repo (spec.md §4.1, §4.5).
			session.DuplicateFiles++
			metrics.FilesProcessedTotal.WithLabelValues("duplicate").Inc()
			logger.Debug("orchestrator: duplicate discovered at finalize", "path", res.Entry.OriginalPath, "existing_file_id", res.FileID)
		default:
			session.ProcessedFiles++
			metrics.FilesProcessedTotal.WithLabelValues("copied").Inc()
		}
	}
	o.persist(ctx, session)
}

// refreshManifest rebuilds every document under documents/ from the
// project's full file and session history (spec.md §4.7), independent of
// which files this session touched: manifest.json, project.json,
// cameras.json, import-log.json, and the human-readable README.txt
// derived from the project, manifest and import-log data.
func (o *Orchestrator) refreshManifest(ctx context.Context, project repo.ProjectRecord) error {
	records, err := o.Repo.ListByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("list project files: %w", err)
	}

	root := filepath.Join(project.WorkingRoot, project.FolderName)
	entries := make([]sidecar.ManifestFileEntry, 0, len(records))
	cameraUsage := map[string]*sidecar.CameraUsage{}
	for _, rec := range records {
		rel, err := filepath.Rel(root, rec.ArchivePath)
		if err != nil {
			rel = rec.ArchivePath
		}
		entries = append(entries, sidecar.ManifestFileEntry{
			Fingerprint:  rec.Fingerprint,
			RelativePath: filepath.ToSlash(rel),
			Medium:       rec.Medium,
			CameraID:     rec.CameraID,
			CameraName:   rec.CameraName,
			FootageType:  rec.FootageType,
			Kind:         rec.Kind,
			Size:         rec.Size,
		})
		if rec.CameraID == "" {
			continue
		}
		usage, ok := cameraUsage[rec.CameraID]
		if !ok {
			usage = &sidecar.CameraUsage{CameraID: rec.CameraID, DisplayName: rec.CameraName}
			cameraUsage[rec.CameraID] = usage
		}
		usage.Files++
		usage.Bytes += rec.Size
	}

	generatedAt := time.Now().Unix()
	manifest := sidecar.BuildManifest(project.ID, generatedAt, entries)
	if err := sidecar.WriteManifest(project.WorkingRoot, project.FolderName, manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	projectDoc := sidecar.ProjectDoc{
		ID:          project.ID,
		Name:        project.Name,
		FolderName:  project.FolderName,
		WorkingRoot: project.WorkingRoot,
		KeyDates:    project.KeyDates,
	}
	if err := sidecar.WriteProjectDoc(project.WorkingRoot, project.FolderName, projectDoc); err != nil {
		return fmt.Errorf("write project doc: %w", err)
	}

	cameras := make([]sidecar.CameraUsage, 0, len(cameraUsage))
	for _, usage := range cameraUsage {
		cameras = append(cameras, *usage)
	}
	sort.Slice(cameras, func(i, j int) bool { return cameras[i].CameraID < cameras[j].CameraID })
	if err := sidecar.WriteCamerasDoc(project.WorkingRoot, project.FolderName, cameras); err != nil {
		return fmt.Errorf("write cameras doc: %w", err)
	}

	allSessions, err := o.Repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	logEntries := make([]sidecar.ImportLogEntry, 0, len(allSessions))
	for _, s := range allSessions {
		if s.ProjectID != project.ID {
			continue
		}
		logEntries = append(logEntries, sidecar.ImportLogEntry{
			SessionID:      s.ID,
			Status:         s.Status,
			TotalFiles:     s.TotalFiles,
			ProcessedFiles: s.ProcessedFiles,
			DuplicateFiles: s.DuplicateFiles,
			ErrorFiles:     s.ErrorFiles,
			StartedAt:      s.StartedAt,
			CompletedAt:    s.CompletedAt,
		})
	}
	if err := sidecar.WriteImportLogDoc(project.WorkingRoot, project.FolderName, logEntries); err != nil {
		return fmt.Errorf("write import log doc: %w", err)
	}

	if err := sidecar.WriteReadme(project.WorkingRoot, project.FolderName, projectDoc, manifest, logEntries); err != nil {
		return fmt.Errorf("write readme: %w", err)
	}
	return nil
}

func toCameraRecords(in []repo.CameraRecord) []camera.Record {
	out := make([]camera.Record, 0, len(in))
	for _, c := range in {
		patterns := make([]camera.Pattern, 0, len(c.Patterns))
		for _, p := range c.Patterns {
			patterns = append(patterns, camera.Pattern{
				Kind:     camera.PatternKind(p.Kind),
				Glob:     p.Glob,
				Priority: p.Priority,
			})
		}
		out = append(out, camera.Record{
			ID:          c.ID,
			DisplayName: c.DisplayName,
			Nickname:    c.Nickname,
			Medium:      camera.Medium(c.Medium),
			Make:        c.Make,
			Model:       c.Model,
			Patterns:    patterns,
			Deinterlace: c.Deinterlace,
			Default:     c.Default,
			Active:      c.Active,
			System:      c.System,
		})
	}
	return out
}
