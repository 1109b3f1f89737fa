// Package camera identifies which camera (and medium) produced a scanned
// file, using the ranked match rules: EXIF make+model, EXIF model, filename
// glob, folder glob, EXIF make alone, raw signature, default fallback.
// Grounded on the teacher's internal/ffmpeg package's preference-table
// shape (ordered checks, first match wins) generalized from codec
// selection to camera matching; glob matching itself uses path/filepath
// since no pack repo carries a third-party glob library.
package camera

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nightfoxfilms/ingestcore/internal/metadata"
)

// Medium is the provenance class of a media file.
type Medium string

const (
	MediumModern  Medium = "modern"
	MediumDadcam  Medium = "dadcam"
	MediumSuper8  Medium = "super8"
)

// PatternKind names what a camera pattern matches against.
type PatternKind string

const (
	PatternFilename  PatternKind = "filename"
	PatternFolder    PatternKind = "folder"
	PatternExtension PatternKind = "extension"
)

// Pattern is one glob rule attached to a camera record. Lower Priority
// wins ties within the same identification rank.
type Pattern struct {
	Kind     PatternKind
	Glob     string
	Priority int
}

// Record is the subset of a camera record the identifier needs. The
// persistence layer owns the full row; this is the read-only projection
// passed in by the caller for each identification pass.
type Record struct {
	ID          string
	DisplayName string
	Nickname    string
	Medium      Medium
	Make        string
	Model       string
	Patterns    []Pattern
	Deinterlace bool
	Default     bool
	Active      bool
	System      bool
}

// Name returns the nickname if set, else the display name — the value
// camera slugs and sidecar snapshots are derived from.
func (r Record) Name() string {
	if r.Nickname != "" {
		return r.Nickname
	}
	return r.DisplayName
}

// Rank labels which identification rule produced a Result, in priority
// order (spec.md §4.3's table).
type Rank string

const (
	RankExifMakeModel Rank = "exif-make-model"
	RankExifModel      Rank = "exif-model"
	RankFilenameGlob   Rank = "filename-glob"
	RankFolderGlob     Rank = "folder-glob"
	RankExifMakeOnly   Rank = "exif-make-only"
	RankRawSignature   Rank = "raw-signature"
	RankDefault        Rank = "default-fallback"
)

var rankConfidence = map[Rank]float64{
	RankExifMakeModel: 0.95,
	RankExifModel:      0.85,
	RankFilenameGlob:   0.75,
	RankFolderGlob:     0.70,
	RankExifMakeOnly:   0.60,
	RankRawSignature:   0.50,
	RankDefault:        0.10,
}

// Result is the outcome of an identification pass.
type Result struct {
	CameraID   string
	Name       string
	Medium     Medium
	Rank       Rank
	Confidence float64
}

// Identifier matches scanned files to camera records.
type Identifier struct {
	rewrites map[string]string
}

// New returns an Identifier using the given model-name rewrite table
// (internal codename → marketing name), applied before comparison and
// display.
func New(rewrites map[string]string) *Identifier {
	if rewrites == nil {
		rewrites = DefaultRewrites
	}
	return &Identifier{rewrites: rewrites}
}

func (id *Identifier) normalize(model string) string {
	if model == "" {
		return model
	}
	if marketing, ok := id.rewrites[model]; ok {
		return marketing
	}
	return model
}

// Identify runs the full ranked match against cameras for one scanned
// file. originalPath is the file's absolute source path (for filename
// and folder glob matches); info is whatever the metadata provider set
// extracted.
func (id *Identifier) Identify(originalPath string, info metadata.MediaInfo, cameras []Record) Result {
	base := filepath.Base(originalPath)
	dir := filepath.Base(filepath.Dir(originalPath))

	make_ := strings.TrimSpace(info.Make)
	model := id.normalize(strings.TrimSpace(info.Model))

	if make_ != "" && model != "" {
		if r, ok := matchMakeModel(cameras, make_, model); ok {
			return id.result(r, RankExifMakeModel)
		}
	}

	if model != "" {
		if r, ok := matchModelSubstring(cameras, model); ok {
			return id.result(r, RankExifModel)
		}
	}

	if r, ok := matchGlob(cameras, PatternFilename, base); ok {
		return id.result(r, RankFilenameGlob)
	}

	if r, ok := matchGlob(cameras, PatternFolder, dir); ok {
		return id.result(r, RankFolderGlob)
	}

	if make_ != "" {
		if r, ok := matchMakeOnly(cameras, make_); ok {
			return id.result(r, RankExifMakeOnly)
		}
	}

	if r, ok := matchRawSignature(cameras, originalPath, dir); ok {
		return id.result(r, RankRawSignature)
	}

	medium := mediumFromInfo(info)
	if r, ok := defaultForMedium(cameras, medium); ok {
		return id.result(r, RankDefault)
	}

	return Result{
		CameraID:   "",
		Name:       "Unknown",
		Medium:     medium,
		Rank:       RankDefault,
		Confidence: rankConfidence[RankDefault],
	}
}

func (id *Identifier) result(r Record, rank Rank) Result {
	return Result{
		CameraID:   r.ID,
		Name:       id.normalize(r.Name()),
		Medium:     r.Medium,
		Rank:       rank,
		Confidence: rankConfidence[rank],
	}
}

func matchMakeModel(cameras []Record, make_, model string) (Record, bool) {
	for _, c := range cameras {
		if strings.EqualFold(c.Make, make_) && strings.EqualFold(c.Model, model) {
			return c, true
		}
	}
	return Record{}, false
}

func matchModelSubstring(cameras []Record, model string) (Record, bool) {
	lower := strings.ToLower(model)
	for _, c := range cameras {
		if c.Model == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(c.Model)) {
			return c, true
		}
	}
	return Record{}, false
}

func matchMakeOnly(cameras []Record, make_ string) (Record, bool) {
	for _, c := range cameras {
		if c.Deinterlace {
			// Rank 5 is reserved for non-interlaced cameras: interlaced
			// sources need a stronger signal than make alone.
			continue
		}
		if strings.EqualFold(c.Make, make_) {
			return c, true
		}
	}
	return Record{}, false
}

// matchGlob finds the camera pattern of the given kind with the
// lowest Priority value whose Glob matches subject, across all cameras.
func matchGlob(cameras []Record, kind PatternKind, subject string) (Record, bool) {
	var best Record
	var bestPattern Pattern
	found := false

	for _, c := range cameras {
		for _, p := range c.Patterns {
			if p.Kind != kind {
				continue
			}
			ok, err := filepath.Match(p.Glob, subject)
			if err != nil || !ok {
				continue
			}
			if !found || p.Priority < bestPattern.Priority {
				best = c
				bestPattern = p
				found = true
			}
		}
	}
	return best, found
}

// matchRawSignature is rank 6: an extension pattern, then a folder-name
// regex (distinct from the glob-based folder match at rank 4, which only
// runs against declared camera patterns). Adjacent sidecar files are not
// consulted at this rank. It covers devices identifiable only by the
// shape of what's on disk around them — an extension unique to one
// camera family, or a folder naming convention a shoot uses without any
// camera metadata at all.
func matchRawSignature(cameras []Record, originalPath, dir string) (Record, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalPath), "."))

	var best Record
	var bestPattern Pattern
	found := false

	for _, c := range cameras {
		for _, p := range c.Patterns {
			if p.Kind != PatternExtension {
				continue
			}
			if !strings.EqualFold(p.Glob, ext) {
				continue
			}
			if !found || p.Priority < bestPattern.Priority {
				best = c
				bestPattern = p
				found = true
			}
		}
	}
	if found {
		return best, true
	}

	// Folder-name regex fallback: camera nickname embedded in the folder
	// name as a loose token, e.g. "2024-06-15 Canon R6 ceremony".
	for _, c := range cameras {
		name := c.Name()
		if name == "" {
			continue
		}
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if err != nil {
			continue
		}
		if pattern.MatchString(dir) {
			return c, true
		}
	}

	return Record{}, false
}

func defaultForMedium(cameras []Record, medium Medium) (Record, bool) {
	for _, c := range cameras {
		if c.Default && c.Medium == medium {
			return c, true
		}
	}
	for _, c := range cameras {
		if c.Default {
			return c, true
		}
	}
	return Record{}, false
}

// mediumFromInfo applies the size-based heuristic from spec.md §4.3 when
// no camera record matched at all: resolution under 480 with a near-4:3
// aspect looks like a super-8 scan, under 720 looks like a tape-era
// camcorder, otherwise modern digital.
func mediumFromInfo(info metadata.MediaInfo) Medium {
	if info.Width == nil || info.Height == nil || *info.Height == 0 {
		return MediumModern
	}
	w, h := *info.Width, *info.Height
	short := h
	if w < h {
		short = w
	}
	aspect := float64(w) / float64(h)
	near4x3 := aspect > 1.2 && aspect < 1.45

	if short < 480 && near4x3 {
		return MediumSuper8
	}
	if short < 720 {
		return MediumDadcam
	}
	return MediumModern
}
