package orchestrator

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// ScannedFile is one file discovered under a source path.
type ScannedFile struct {
	OriginalPath string
	Filename     string
	Size         int64
	Extension    string
	Kind         string // video | audio | other
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mxf": true, ".avi": true, ".mts": true,
	".m2ts": true, ".braw": true, ".r3d": true, ".mkv": true,
}

var audioExtensions = map[string]bool{
	".wav": true, ".aif": true, ".aiff": true, ".mp3": true, ".m4a": true,
}

func classify(ext string) string {
	switch {
	case videoExtensions[ext]:
		return "video"
	case audioExtensions[ext]:
		return "audio"
	default:
		return "other"
	}
}

// Scan walks every source path (file or directory) and returns every
// non-hidden file found, classified by extension. Grounded on the
// teacher's internal/browse/browse.go walk: filepath.WalkDir to avoid a
// stat on every entry, hidden (dot-prefixed) names skipped, context
// cancellation checked per entry.
func Scan(ctx context.Context, sourcePaths []string) ([]ScannedFile, error) {
	var found []ScannedFile

	for _, root := range sourcePaths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(path))
			found = append(found, ScannedFile{
				OriginalPath: path,
				Filename:     d.Name(),
				Size:         info.Size(),
				Extension:    strings.TrimPrefix(ext, "."),
				Kind:         classify(ext),
			})
			return nil
		})
		if err != nil {
			return found, err
		}
		if ctx.Err() != nil {
			return found, ctx.Err()
		}
	}

	return found, nil
}
