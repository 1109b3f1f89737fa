package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	exiftool "github.com/barasher/go-exiftool"
)

// exifExts lists the extensions EXIF has any business reading.
// EXIF-bearing video (most camcorder and mirrorless camera output) and
// still images both carry make/model tags this provider extracts.
var exifExts = map[string]bool{
	"mp4": true, "mov": true, "m4v": true, "jpg": true, "jpeg": true,
	"heic": true, "arw": true, "cr2": true, "cr3": true, "nef": true,
	"dng": true,
}

// ExifProvider extracts make/model/lens/recording-time/GPS tags via
// exiftool. Grounded on bleemesser-photosort's util/import.go, which
// shells identically into barasher/go-exiftool per-worker, reusing one
// *exiftool.Exiftool handle across files for throughput.
type ExifProvider struct {
	mu sync.Mutex
	et *exiftool.Exiftool
}

// NewExifProvider starts one exiftool process. Closing the returned
// provider terminates it; callers should keep one instance per ingest
// session, matching the photosort example's per-worker instance lifetime.
func NewExifProvider() (*ExifProvider, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("metadata: start exiftool: %w", err)
	}
	return &ExifProvider{et: et}, nil
}

func (p *ExifProvider) Name() string { return "exif" }

func (p *ExifProvider) Close() error {
	return p.et.Close()
}

func (p *ExifProvider) supports(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return exifExts[ext]
}

func (p *ExifProvider) extract(path string) (map[string]interface{}, error) {
	if !p.supports(path) {
		return nil, &ErrUnsupported{Provider: p.Name(), Path: path}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	results := p.et.ExtractMetadata(path)
	if len(results) == 0 {
		return nil, fmt.Errorf("metadata: exiftool returned no result for %s", path)
	}
	if results[0].Err != nil {
		return nil, fmt.Errorf("metadata: exiftool: %w", results[0].Err)
	}
	return results[0].Fields, nil
}

func (p *ExifProvider) Probe(ctx context.Context, path string) (MediaInfo, error) {
	fields, err := p.extract(path)
	if err != nil {
		return MediaInfo{}, err
	}

	info := MediaInfo{
		Make:  stringField(fields, "Make"),
		Model: stringField(fields, "Model"),
		Lens:  stringField(fields, "LensModel"),
	}

	if lat, ok := floatField(fields, "GPSLatitude"); ok {
		info.GPSLatitude = &lat
	}
	if lon, ok := floatField(fields, "GPSLongitude"); ok {
		info.GPSLongitude = &lon
	}
	if secs, ok := unixTimeField(fields, "CreateDate"); ok {
		info.RecordingAt = &secs
	}

	return info, nil
}

func (p *ExifProvider) RawJSON(ctx context.Context, path string) ([]byte, error) {
	fields, err := p.extract(path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatField(fields map[string]interface{}, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// unixTimeField parses exiftool's "YYYY:MM:DD HH:MM:SS" date format,
// which is not RFC3339 and needs its own layout.
func unixTimeField(fields map[string]interface{}, key string) (int64, bool) {
	s := stringField(fields, key)
	if s == "" {
		return 0, false
	}
	t, err := parseExifTime(s)
	if err != nil {
		return 0, false
	}
	return t, true
}
