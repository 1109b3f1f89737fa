// Package sidecar writes the per-file sidecar JSON and the project-level
// manifest/project/cameras/import-log/README documents spec.md §4.7
// describes. Every document is rewritten whole, never patched, using a
// temp-file-then-rename for durability (see writeatomic.go).
package sidecar

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// SchemaVersion is the current dotted sidecar/manifest schema version
// (spec.md §6). Consumers must tolerate unknown fields.
const SchemaVersion = "1.0"

// Technical is the sidecar's technical block.
type Technical struct {
	DurationMs *int64   `json:"duration_ms,omitempty"`
	Width      *int     `json:"width,omitempty"`
	Height     *int     `json:"height,omitempty"`
	FrameRate  *float64 `json:"frame_rate,omitempty"`
	Codec      string   `json:"codec,omitempty"`
	BitRate    *int64   `json:"bit_rate,omitempty"`
}

// Detection is the sidecar's detection block.
type Detection struct {
	Medium string `json:"medium"`
	Make   string `json:"make,omitempty"`
	Model  string `json:"model,omitempty"`
	Lens   string `json:"lens,omitempty"`
}

// CameraSnapshot is the matched camera's identity at generation time, so
// the sidecar stays meaningful even if the camera record later changes.
type CameraSnapshot struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname,omitempty"`
}

// ProjectSnapshot is the owning project's identity at generation time.
type ProjectSnapshot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FolderName string `json:"folder_name"`
}

// File is the per-file sidecar document (spec.md §4.7).
type File struct {
	SchemaVersion    string          `json:"schema_version"`
	GeneratorTag     string          `json:"generator_tag"`
	GeneratedAt      int64           `json:"generated_at"`
	Fingerprint      string          `json:"fingerprint"`
	OriginalFilename string          `json:"original_filename"`
	OriginalPath     string          `json:"original_path"`
	ArchivePath      string          `json:"archive_path"`
	Size             int64           `json:"size"`
	Extension        string          `json:"extension"`
	Kind             string          `json:"kind"`
	FootageType      string          `json:"footage_type,omitempty"`
	Technical        Technical       `json:"technical"`
	Detection        Detection       `json:"detection"`
	Camera           *CameraSnapshot `json:"camera,omitempty"`
	Project          *ProjectSnapshot `json:"project,omitempty"`
	RecordingAt      *int64          `json:"recording_at,omitempty"`
	ImportedAt       int64           `json:"imported_at"`

	// Metadata carries the raw per-provider blobs (spec.md §4.5 step 4),
	// keyed by provider name, each value left as opaque JSON.
	Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
}

// PathFor returns the sidecar path for an archive object: the archive
// path with its extension replaced by ".json" (spec.md §6).
func PathFor(archivePath string) string {
	ext := filepath.Ext(archivePath)
	return strings.TrimSuffix(archivePath, ext) + ".json"
}

// WriteFile rewrites the sidecar for f.ArchivePath in full.
func WriteFile(f File) error {
	return writeJSONAtomic(PathFor(f.ArchivePath), f)
}
