// Package copier moves media files from a source path into the archive
// layout (spec.md §4.4, §6), in one of two modes selected by the source's
// storage profile: pre-hashed (local — the fingerprint is already known)
// or inline-hash (network — the fingerprint falls out of the single
// streaming read). Every destination write goes through a temp-name-then-
// rename, grounded on the teacher's FinalizeTranscode/BuildTempPath idiom
// in internal/ffmpeg/transcode.go, generalized from a single transcode
// output to an archive's worth of files with per-run fault tracking.
package copier

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nightfoxfilms/ingestcore/internal/hash"
	"github.com/nightfoxfilms/ingestcore/internal/logger"
	"github.com/nightfoxfilms/ingestcore/internal/storageprofile"

	"golang.org/x/sync/errgroup"
)

// Entry is one source file queued for copy.
type Entry struct {
	OriginalPath     string
	OriginalFilename string
	Size             int64
	Extension        string // lowercase, no dot

	// Fingerprint is non-empty in pre-hashed mode (local sources, already
	// hashed during the scan/hash stage). Left empty selects inline-hash
	// mode: the fingerprint is computed as a by-product of the copy.
	Fingerprint string
}

// Resolved is what a Resolver returns for one entry: the archive
// subdirectory components (spec.md §6's `<medium>/<cameraSlug>`).
type Resolved struct {
	Medium     string
	CameraSlug string
}

// Resolver builds the destination directory components for an entry. It
// is called once per entry, before any I/O, so directory creation can be
// batched (spec.md §4.4).
type Resolver func(Entry) (Resolved, error)

// ProgressFunc reports (index, total, current filename) after each file,
// successful or not.
type ProgressFunc func(index, total int, filename string)

// Options configures one Engine run (spec.md §6 "Copy" table).
type Options struct {
	WorkingRoot    string
	ProjectFolder  string
	AbortThreshold int    // consecutive retryable failures before NetworkFailureError; default 5
	TempSuffix     string // default ".tmp"
}

func (o Options) withDefaults() Options {
	if o.AbortThreshold <= 0 {
		o.AbortThreshold = 5
	}
	if o.TempSuffix == "" {
		o.TempSuffix = ".tmp"
	}
	return o
}

// FileResult is the outcome of copying one entry.
type FileResult struct {
	Entry       Entry
	Fingerprint string
	ArchivePath string
	BytesCopied int64
	Cancelled   bool
	Err         error
}

// Engine copies a batch of entries under one storage profile.
type Engine struct {
	profile storageprofile.Profile
	opts    Options
}

// New builds an Engine. profile governs buffering, inter-op delay, and
// the retry table; it is the single source of truth for this run's I/O
// behaviour (spec.md §4.1).
func New(profile storageprofile.Profile, opts Options) *Engine {
	return &Engine{profile: profile, opts: opts.withDefaults()}
}

// Copy copies every entry to its resolved archive location. It returns
// partial results (one per entry attempted) alongside a *NetworkFailureError
// if the consecutive-failure threshold was crossed — that is not a fatal
// return, the orchestrator is expected to pause the session and resume
// later with the remaining entries.
func (e *Engine) Copy(ctx context.Context, entries []Entry, resolve Resolver, progress ProgressFunc) ([]FileResult, error) {
	resolved := make([]Resolved, len(entries))
	destDirs := make([]string, len(entries))
	dirSet := make(map[string]struct{})

	for i, entry := range entries {
		r, err := resolve(entry)
		if err != nil {
			return nil, fmt.Errorf("copier: resolve %s: %w", entry.OriginalPath, err)
		}
		resolved[i] = r
		dir := filepath.Join(e.opts.WorkingRoot, e.opts.ProjectFolder, "source", r.Medium, r.CameraSlug)
		destDirs[i] = dir
		dirSet[dir] = struct{}{}
	}

	if err := e.createDirs(ctx, dirSet); err != nil {
		return nil, fmt.Errorf("copier: prepare directories: %w", err)
	}

	results := make([]FileResult, 0, len(entries))
	consecutiveFailures := 0

	for i, entry := range entries {
		if ctx.Err() != nil {
			results = append(results, FileResult{Entry: entry, Cancelled: true, Err: ctx.Err()})
			if progress != nil {
				progress(i+1, len(entries), entry.OriginalFilename)
			}
			continue
		}

		res := e.copyOneWithRetry(ctx, entry, destDirs[i])
		results = append(results, res)
		if progress != nil {
			progress(i+1, len(entries), entry.OriginalFilename)
		}

		if res.Cancelled {
			continue
		}
		if res.Err != nil && isRetryableFailure(res.Err) {
			consecutiveFailures++
			if consecutiveFailures >= e.opts.AbortThreshold {
				logger.Warn("copier: consecutive failure threshold reached, raising network-failure condition",
					"threshold", e.opts.AbortThreshold, "last_error", res.Err)
				return results, &NetworkFailureError{ConsecutiveFailures: consecutiveFailures, LastErr: res.Err}
			}
		} else {
			consecutiveFailures = 0
		}

		if e.profile.InterOpDelay > 0 && i < len(entries)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(e.profile.InterOpDelay):
			}
		}
	}

	return results, nil
}

// createDirs pre-creates every distinct destination directory. Sequential
// on network storage (to avoid swamping SMB with concurrent mkdirs),
// parallel on local via errgroup (spec.md §4.4).
func (e *Engine) createDirs(ctx context.Context, dirs map[string]struct{}) error {
	if e.profile.Kind == storageprofile.KindNetwork {
		for dir := range dirs {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	for dir := range dirs {
		dir := dir
		g.Go(func() error {
			return os.MkdirAll(dir, 0755)
		})
	}
	return g.Wait()
}

// copyOneWithRetry copies a single entry, retrying retryable failures per
// the storage profile's backoff table.
func (e *Engine) copyOneWithRetry(ctx context.Context, entry Entry, destDir string) FileResult {
	var lastErr error
	attempts := append([]time.Duration{0}, e.profile.RetryDelays...)

	for attempt, delay := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return FileResult{Entry: entry, Cancelled: true, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}
		if ctx.Err() != nil {
			return FileResult{Entry: entry, Cancelled: true, Err: ctx.Err()}
		}

		fingerprint, archivePath, n, err := e.copyOne(entry, destDir)
		if err == nil {
			return FileResult{Entry: entry, Fingerprint: fingerprint, ArchivePath: archivePath, BytesCopied: n}
		}
		lastErr = err
		if !e.profile.IsRetryable(classifyError(err)) {
			break
		}
		logger.Warn("copier: retryable copy failure", "path", entry.OriginalPath, "attempt", attempt+1, "error", err)
	}

	return FileResult{Entry: entry, Err: lastErr}
}

// copyOne performs one copy attempt: write to a temp name in destDir,
// then atomically rename to the fingerprint-named final path.
func (e *Engine) copyOne(entry Entry, destDir string) (fingerprint, archivePath string, bytesCopied int64, err error) {
	src, err := os.Open(entry.OriginalPath)
	if err != nil {
		return "", "", 0, fmt.Errorf("copier: open source: %w", err)
	}
	defer src.Close()

	tempPath := filepath.Join(destDir, tempName(e.opts.TempSuffix))
	dst, err := os.Create(tempPath)
	if err != nil {
		return "", "", 0, fmt.Errorf("copier: create temp: %w", err)
	}

	if entry.Fingerprint != "" {
		// Pre-hashed mode: plain byte copy, fingerprint already known.
		n, copyErr := io.Copy(dst, src)
		closeErr := dst.Close()
		if copyErr != nil {
			os.Remove(tempPath)
			return "", "", n, fmt.Errorf("copier: copy: %w", copyErr)
		}
		if closeErr != nil {
			os.Remove(tempPath)
			return "", "", n, fmt.Errorf("copier: close temp: %w", closeErr)
		}
		fingerprint = entry.Fingerprint
		bytesCopied = n
	} else {
		// Inline-hash mode: stream the source through the hasher while
		// writing to the temp file, so a network source is read once.
		fp, n, hashErr := hash.Stream(src, dst)
		closeErr := dst.Close()
		if hashErr != nil {
			os.Remove(tempPath)
			return "", "", n, fmt.Errorf("copier: stream hash: %w", hashErr)
		}
		if closeErr != nil {
			os.Remove(tempPath)
			return "", "", n, fmt.Errorf("copier: close temp: %w", closeErr)
		}
		fingerprint = fp
		bytesCopied = n
	}

	finalPath := filepath.Join(destDir, fingerprint+"."+entry.Extension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", "", bytesCopied, fmt.Errorf("copier: rename into place: %w", err)
	}

	return fingerprint, finalPath, bytesCopied, nil
}

func tempName(suffix string) string {
	return fmt.Sprintf("tmp_%d_%s%s", time.Now().Unix(), uuid.NewString(), suffix)
}

// Rollback removes a single archive object, used by internal/validator on
// hash mismatch (spec.md §4.4 "Rollback").
func Rollback(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("copier: rollback %s: %w", path, err)
	}
	return nil
}
