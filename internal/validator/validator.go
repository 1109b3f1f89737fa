// Package validator re-hashes copied archive objects and compares them
// against their expected fingerprint, rolling back the destination on a
// mismatch (spec.md §4.5). It is grounded on the teacher's post-transcode
// verification step in internal/jobs/worker.go (the OutputSize >= InputSize
// check followed by os.Remove on failure), generalized from a size
// comparison to a full content re-hash.
package validator

import (
	"context"
	"fmt"

	"github.com/nightfoxfilms/ingestcore/internal/copier"
	"github.com/nightfoxfilms/ingestcore/internal/hash"
	"github.com/nightfoxfilms/ingestcore/internal/logger"
)

// Entry is one copied file awaiting validation.
type Entry struct {
	ArchivePath         string
	ExpectedFingerprint string
	OriginalFilename    string
}

// Result is the outcome of validating one entry. A mismatch is never
// fatal to the import session (spec.md §7) — it only marks this one file
// invalid.
type Result struct {
	Entry      Entry
	Valid      bool
	RolledBack bool
	Err        error // set only for an I/O failure re-hashing, not for a mismatch
}

// ProgressFunc reports (index, total, current filename), identical in
// shape to copier.ProgressFunc (spec.md §4.5 "Progress is reported
// identically to copy").
type ProgressFunc func(index, total int, filename string)

// Options configures a Validator.
type Options struct {
	AutoRollback bool // default true; spec.md §6 "Copy" table
}

// Validator re-hashes and compares copied entries.
type Validator struct {
	opts Options
}

func New(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Validate re-hashes every entry at its archive path and compares against
// the expected fingerprint. Cancellation marks remaining entries as
// cancelled errors rather than validating them.
func (v *Validator) Validate(ctx context.Context, entries []Entry, progress ProgressFunc) []Result {
	results := make([]Result, 0, len(entries))

	for i, entry := range entries {
		if ctx.Err() != nil {
			results = append(results, Result{Entry: entry, Err: ctx.Err()})
			if progress != nil {
				progress(i+1, len(entries), entry.OriginalFilename)
			}
			continue
		}

		results = append(results, v.validateOne(entry))
		if progress != nil {
			progress(i+1, len(entries), entry.OriginalFilename)
		}
	}

	return results
}

func (v *Validator) validateOne(entry Entry) Result {
	got, err := hash.Fingerprint(entry.ArchivePath)
	if err != nil {
		return Result{Entry: entry, Err: fmt.Errorf("validator: rehash %s: %w", entry.ArchivePath, err)}
	}

	if got == entry.ExpectedFingerprint {
		return Result{Entry: entry, Valid: true}
	}

	logger.Warn("validator: hash mismatch", "path", entry.ArchivePath, "expected", entry.ExpectedFingerprint, "got", got)

	if !v.opts.AutoRollback {
		return Result{Entry: entry, Valid: false}
	}

	if err := copier.Rollback(entry.ArchivePath); err != nil {
		return Result{Entry: entry, Valid: false, Err: fmt.Errorf("validator: rollback %s: %w", entry.ArchivePath, err)}
	}
	return Result{Entry: entry, Valid: false, RolledBack: true}
}
