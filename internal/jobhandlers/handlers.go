// Package jobhandlers registers the post-ingest jobqueue.Handler
// implementations for the job kinds of spec.md §4.6: integrity
// re-verification, thumbnail and proxy generation, a completion-only
// enhancement placeholder, and the job that hands off to the supervised
// ML extractor subprocess.
// Grounded on the teacher's internal/jobs/worker.go handler shape (a
// plain function closed over its dependencies, reporting progress back
// through the queue it was claimed from) generalized from one job kind
// to five.
package jobhandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/nightfoxfilms/ingestcore/internal/bgservice"
	"github.com/nightfoxfilms/ingestcore/internal/ffmpeg"
	"github.com/nightfoxfilms/ingestcore/internal/hash"
	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/logger"
	"github.com/nightfoxfilms/ingestcore/internal/repo"
)

// payload is the {"file_id": "..."} shape internal/finalizer encodes for
// every job it enqueues.
type payload struct {
	FileID string `json:"file_id"`
}

// Handlers bundles the dependencies every handler closes over and
// exposes one jobqueue.Handler per Kind via Register.
type Handlers struct {
	Repo         repo.Repo
	Queue        *jobqueue.Queue
	Transcoder   *ffmpeg.Transcoder
	ML           *bgservice.Service // nil disables ml-extract
	MLExtractURL string             // POST target once ML is healthy

	ProxyMaxHeight     int
	ThumbnailAtSeconds float64
}

// Register binds every handler this package implements to pool.
func (h *Handlers) Register(pool *jobqueue.Pool) {
	pool.Register(jobqueue.KindIntegrity, h.Integrity)
	pool.Register(jobqueue.KindThumbnail, h.Thumbnail)
	pool.Register(jobqueue.KindProxy, h.Proxy)
	pool.Register(jobqueue.KindEnhancement, h.Enhancement)
	if h.ML != nil {
		pool.Register(jobqueue.KindMLExtract, h.MLExtract)
	}
}

func (h *Handlers) fileFor(ctx context.Context, job jobqueue.Job) (*repo.FileRecord, error) {
	var p payload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("jobhandlers: decode payload: %w", err)
	}
	rec, err := h.Repo.FindByFileID(ctx, p.FileID)
	if err != nil {
		return nil, fmt.Errorf("jobhandlers: look up file %s: %w", p.FileID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("jobhandlers: file %s not found", p.FileID)
	}
	return rec, nil
}

// Integrity re-hashes an archived file and compares it against the
// fingerprint recorded at finalize time (spec.md §4.6 "periodic
// integrity re-verification"). A mismatch fails the job rather than
// panicking the pipeline; repeated failures dead-letter per the queue's
// retry budget and surface through /api/jobs/stats for an operator to
// investigate the underlying media.
func (h *Handlers) Integrity(ctx context.Context, job jobqueue.Job) error {
	rec, err := h.fileFor(ctx, job)
	if err != nil {
		return err
	}
	fp, err := hash.Fingerprint(rec.ArchivePath)
	if err != nil {
		return fmt.Errorf("jobhandlers: integrity rehash: %w", err)
	}
	if fp != rec.Fingerprint {
		return fmt.Errorf("jobhandlers: integrity check failed for %s: archive fingerprint now %s, expected %s",
			rec.ArchivePath, fp, rec.Fingerprint)
	}
	_ = h.Queue.Progress(ctx, job.ID, 100, "verified")
	return nil
}

// Thumbnail grabs a still frame for video files. Non-video kinds (stills,
// audio) are a no-op success; the finalizer enqueues this job uniformly
// for every archived file.
func (h *Handlers) Thumbnail(ctx context.Context, job jobqueue.Job) error {
	rec, err := h.fileFor(ctx, job)
	if err != nil {
		return err
	}
	if rec.Kind != "video" {
		return nil
	}

	outputPath := derivativePath(rec, "thumbnails", ".jpg")
	if err := h.Transcoder.GenerateThumbnail(ctx, rec.ArchivePath, outputPath, h.ThumbnailAtSeconds); err != nil {
		return fmt.Errorf("jobhandlers: thumbnail: %w", err)
	}
	if err := h.Repo.UpdateThumbnailPath(ctx, rec.ID, outputPath); err != nil {
		return fmt.Errorf("jobhandlers: record thumbnail path: %w", err)
	}
	h.Queue.AssetReady(job.ID, jobqueue.KindThumbnail, "thumbnail", outputPath)

	for _, pct := range galleryPercents {
		galleryPath := derivativePath(rec, "gallery", fmt.Sprintf("_%d.jpg", pct))
		if err := h.Transcoder.GenerateGalleryStill(ctx, rec.ArchivePath, galleryPath, h.ThumbnailAtSeconds, pct); err != nil {
			return fmt.Errorf("jobhandlers: gallery still at %d%%: %w", pct, err)
		}
	}

	_ = h.Queue.Progress(ctx, job.ID, 100, "generated")
	return nil
}

// galleryPercents are the preview sizes the archive layout reserves
// gallery/<fingerprint>_{25,50,75}.jpg for.
var galleryPercents = []int{25, 50, 75}

// Proxy generates a lightweight edit proxy for video files.
func (h *Handlers) Proxy(ctx context.Context, job jobqueue.Job) error {
	rec, err := h.fileFor(ctx, job)
	if err != nil {
		return err
	}
	if rec.Kind != "video" {
		return nil
	}

	var duration time.Duration
	if rec.Duration != nil {
		duration = time.Duration(*rec.Duration) * time.Millisecond
	}

	outputPath := derivativePath(rec, "proxies", "_proxy.mp4")
	progressCh := make(chan ffmpeg.Progress, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressCh {
			_ = h.Queue.Progress(ctx, job.ID, p.Percent, fmt.Sprintf("%.0f%%", p.Percent))
		}
	}()

	result, err := h.Transcoder.GenerateProxy(ctx, rec.ArchivePath, outputPath, duration,
		ffmpeg.ProxyOptions{MaxHeight: h.ProxyMaxHeight}, progressCh)
	<-done
	if err != nil {
		return fmt.Errorf("jobhandlers: proxy: %w", err)
	}
	logger.Debug("jobhandlers: proxy generated", "file_id", rec.ID, "bytes", result.OutputSize, "took", result.Duration)

	if err := h.Repo.UpdateProxyPath(ctx, rec.ID, outputPath); err != nil {
		return fmt.Errorf("jobhandlers: record proxy path: %w", err)
	}
	h.Queue.AssetReady(job.ID, jobqueue.KindProxy, "proxy", outputPath)
	return nil
}

// Enhancement is a placeholder hook for per-camera LUT/colour
// adjustments; the finalizer's job chain does not enqueue this kind. No
// enhancement profile is configured, so this only reports completion; a
// LUT pipeline registers its own handler under the same kind instead of
// here.
func (h *Handlers) Enhancement(ctx context.Context, job jobqueue.Job) error {
	_ = h.Queue.Progress(ctx, job.ID, 100, "no enhancement profile configured")
	return nil
}

// MLExtract forwards the archived file path to the supervised ML
// extractor subprocess and waits for its response. The extractor's
// model internals are out of scope here; this handler only owns the
// process lifecycle and the HTTP round trip.
func (h *Handlers) MLExtract(ctx context.Context, job jobqueue.Job) error {
	rec, err := h.fileFor(ctx, job)
	if err != nil {
		return err
	}
	if err := h.ML.Start(ctx); err != nil {
		return fmt.Errorf("jobhandlers: ml extractor start: %w", err)
	}
	h.ML.Touch()

	if err := h.requestExtraction(ctx, rec.ArchivePath); err != nil {
		return fmt.Errorf("jobhandlers: ml extract: %w", err)
	}
	_ = h.Queue.Progress(ctx, job.ID, 100, "extracted")
	return nil
}

func (h *Handlers) requestExtraction(ctx context.Context, archivePath string) error {
	if h.MLExtractURL == "" {
		return fmt.Errorf("no ml extract endpoint configured")
	}
	body, err := json.Marshal(struct {
		Path string `json:"path"`
	}{Path: archivePath})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.MLExtractURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extractor returned %s", resp.Status)
	}
	return nil
}

func derivativePath(rec *repo.FileRecord, subdir, ext string) string {
	// archive layout is <root>/<project-folder>/source/<medium>/<camera>/<fp>.<ext>;
	// derivatives sit as siblings of "source" under the project folder.
	cameraDir := filepath.Dir(rec.ArchivePath)
	projectFolder := filepath.Dir(filepath.Dir(filepath.Dir(cameraDir)))
	return filepath.Join(projectFolder, subdir, rec.Fingerprint+ext)
}
