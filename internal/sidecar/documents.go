package sidecar

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nightfoxfilms/ingestcore/internal/util"
)

// documentsDir is the fixed subdirectory project documents live under
// (spec.md §6 archive layout).
func documentsDir(workingRoot, projectFolder string) string {
	return filepath.Join(workingRoot, projectFolder, "documents")
}

// Totals aggregates a file count and byte count for one manifest bucket.
type Totals struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// ManifestFileEntry is one row of the project manifest.
type ManifestFileEntry struct {
	Fingerprint  string `json:"fingerprint"`
	RelativePath string `json:"relative_path"`
	Medium       string `json:"medium"`
	CameraID     string `json:"camera_id,omitempty"`
	CameraName   string `json:"camera_name,omitempty"`
	FootageType  string `json:"footage_type,omitempty"`
	Kind         string `json:"kind"`
	Size         int64  `json:"size"`
}

// Manifest lists every file in a project plus aggregated totals, the
// listing the sidecar writer refreshes after every session without
// touching the other project documents (spec.md §4.7).
type Manifest struct {
	SchemaVersion       string                 `json:"schema_version"`
	GeneratedAt         int64                  `json:"generated_at"`
	ProjectID           string                 `json:"project_id"`
	Files               []ManifestFileEntry    `json:"files"`
	TotalsByMedium      map[string]Totals      `json:"totals_by_medium"`
	TotalsByFootageType map[string]Totals      `json:"totals_by_footage_type"`
	TotalsByCamera      map[string]Totals      `json:"totals_by_camera"`
}

// BuildManifest aggregates totals from the file list.
func BuildManifest(projectID string, generatedAt int64, files []ManifestFileEntry) Manifest {
	m := Manifest{
		SchemaVersion:       SchemaVersion,
		GeneratedAt:         generatedAt,
		ProjectID:           projectID,
		Files:               files,
		TotalsByMedium:      map[string]Totals{},
		TotalsByFootageType: map[string]Totals{},
		TotalsByCamera:      map[string]Totals{},
	}
	for _, f := range files {
		addTotal(m.TotalsByMedium, f.Medium, f.Size)
		if f.FootageType != "" {
			addTotal(m.TotalsByFootageType, f.FootageType, f.Size)
		}
		if f.CameraID != "" {
			addTotal(m.TotalsByCamera, f.CameraID, f.Size)
		}
	}
	return m
}

func addTotal(m map[string]Totals, key string, size int64) {
	t := m[key]
	t.Files++
	t.Bytes += size
	m[key] = t
}

// WriteManifest is the manifest-only refresh entry point (spec.md §4.7):
// it rewrites documents/manifest.json without touching project.json,
// cameras.json, import-log.json, or README.txt.
func WriteManifest(workingRoot, projectFolder string, m Manifest) error {
	path := filepath.Join(documentsDir(workingRoot, projectFolder), "manifest.json")
	return writeJSONAtomic(path, m)
}

// ProjectDoc is the project descriptor document.
type ProjectDoc struct {
	SchemaVersion string           `json:"schema_version"`
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	FolderName    string           `json:"folder_name"`
	WorkingRoot   string           `json:"working_root"`
	KeyDates      map[string]int64 `json:"key_dates,omitempty"`
}

func WriteProjectDoc(workingRoot, projectFolder string, doc ProjectDoc) error {
	doc.SchemaVersion = SchemaVersion
	path := filepath.Join(documentsDir(workingRoot, projectFolder), "project.json")
	return writeJSONAtomic(path, doc)
}

// CameraUsage is one camera's contribution to a project, listed only for
// cameras that actually contributed files (spec.md §4.7).
type CameraUsage struct {
	CameraID    string `json:"camera_id"`
	DisplayName string `json:"display_name"`
	Files       int    `json:"files"`
	Bytes       int64  `json:"bytes"`
}

// CamerasDoc lists the cameras that contributed files to a project.
type CamerasDoc struct {
	SchemaVersion string        `json:"schema_version"`
	Cameras       []CameraUsage `json:"cameras"`
}

func WriteCamerasDoc(workingRoot, projectFolder string, usage []CameraUsage) error {
	doc := CamerasDoc{SchemaVersion: SchemaVersion, Cameras: usage}
	path := filepath.Join(documentsDir(workingRoot, projectFolder), "cameras.json")
	return writeJSONAtomic(path, doc)
}

// ImportLogEntry is one session's summary row.
type ImportLogEntry struct {
	SessionID      string `json:"session_id"`
	Status         string `json:"status"`
	TotalFiles     int    `json:"total_files"`
	ProcessedFiles int    `json:"processed_files"`
	DuplicateFiles int    `json:"duplicate_files"`
	ErrorFiles     int    `json:"error_files"`
	StartedAt      int64  `json:"started_at"`
	CompletedAt    *int64 `json:"completed_at,omitempty"`
}

// ImportLogDoc lists every import session for a project.
type ImportLogDoc struct {
	SchemaVersion string           `json:"schema_version"`
	Sessions      []ImportLogEntry `json:"sessions"`
}

func WriteImportLogDoc(workingRoot, projectFolder string, sessions []ImportLogEntry) error {
	doc := ImportLogDoc{SchemaVersion: SchemaVersion, Sessions: sessions}
	path := filepath.Join(documentsDir(workingRoot, projectFolder), "import-log.json")
	return writeJSONAtomic(path, doc)
}

// WriteReadme renders a humanised plain-text summary of the manifest and
// project documents, using util.FormatBytes for every byte total.
func WriteReadme(workingRoot, projectFolder string, project ProjectDoc, manifest Manifest, sessions []ImportLogEntry) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", project.Name)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", len(project.Name)))
	fmt.Fprintf(&b, "Archive folder: %s\n", project.FolderName)
	fmt.Fprintf(&b, "Total files: %d\n", len(manifest.Files))

	var totalBytes int64
	for _, t := range manifest.TotalsByMedium {
		totalBytes += t.Bytes
	}
	fmt.Fprintf(&b, "Total size: %s\n\n", util.FormatBytes(totalBytes))

	fmt.Fprintf(&b, "By medium:\n")
	for _, medium := range sortedKeys(manifest.TotalsByMedium) {
		t := manifest.TotalsByMedium[medium]
		fmt.Fprintf(&b, "  %-12s %5d files, %s\n", medium, t.Files, util.FormatBytes(t.Bytes))
	}

	if len(manifest.TotalsByFootageType) > 0 {
		fmt.Fprintf(&b, "\nBy footage type:\n")
		for _, ft := range sortedKeys(manifest.TotalsByFootageType) {
			t := manifest.TotalsByFootageType[ft]
			fmt.Fprintf(&b, "  %-14s %5d files, %s\n", ft, t.Files, util.FormatBytes(t.Bytes))
		}
	}

	if len(sessions) > 0 {
		fmt.Fprintf(&b, "\nImport sessions:\n")
		for _, s := range sessions {
			fmt.Fprintf(&b, "  %s  status=%s  files=%d  duplicates=%d  errors=%d\n",
				s.SessionID, s.Status, s.ProcessedFiles, s.DuplicateFiles, s.ErrorFiles)
		}
	}

	path := filepath.Join(documentsDir(workingRoot, projectFolder), "README.txt")
	return writeAtomic(path, []byte(b.String()))
}

func sortedKeys(m map[string]Totals) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
