package sidecar

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathFor(t *testing.T) {
	got := PathFor("/archive/proj/source/modern/cam/abc123.mp4")
	want := "/archive/proj/source/modern/cam/abc123.json"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestWriteFileRewritesWhole(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "abc123.mp4")

	width := 1920
	f := File{
		SchemaVersion: SchemaVersion,
		GeneratorTag:  "ingestcore",
		Fingerprint:   "abc123",
		ArchivePath:   archivePath,
		Size:          1024,
		Extension:     "mp4",
		Kind:          "video",
		Technical:     Technical{Width: &width},
		Detection:     Detection{Medium: "modern", Make: "Canon"},
	}
	if err := WriteFile(f); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(PathFor(archivePath))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var got File
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Fingerprint != "abc123" || got.Detection.Make != "Canon" {
		t.Fatalf("unexpected sidecar content: %+v", got)
	}

	// Rewriting drops stale fields rather than patching.
	f.Detection.Make = "Sony"
	f.Technical.Width = nil
	if err := WriteFile(f); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, err = os.ReadFile(PathFor(archivePath))
	if err != nil {
		t.Fatalf("read rewritten sidecar: %v", err)
	}
	var got2 File
	if err := json.Unmarshal(data, &got2); err != nil {
		t.Fatalf("unmarshal rewritten: %v", err)
	}
	if got2.Detection.Make != "Sony" || got2.Technical.Width != nil {
		t.Fatalf("expected rewrite to replace stale fields, got %+v", got2)
	}
}

func TestBuildManifestAggregatesTotals(t *testing.T) {
	files := []ManifestFileEntry{
		{Fingerprint: "a", Medium: "modern", CameraID: "cam-1", FootageType: "project-day", Size: 100},
		{Fingerprint: "b", Medium: "modern", CameraID: "cam-1", FootageType: "rehearsal-day", Size: 200},
		{Fingerprint: "c", Medium: "dadcam", CameraID: "cam-2", FootageType: "project-day", Size: 50},
	}
	m := BuildManifest("proj-1", 1700000000, files)

	if m.TotalsByMedium["modern"].Files != 2 || m.TotalsByMedium["modern"].Bytes != 300 {
		t.Fatalf("unexpected modern totals: %+v", m.TotalsByMedium["modern"])
	}
	if m.TotalsByCamera["cam-1"].Files != 2 {
		t.Fatalf("unexpected cam-1 totals: %+v", m.TotalsByCamera["cam-1"])
	}
	if m.TotalsByFootageType["project-day"].Files != 2 {
		t.Fatalf("unexpected project-day totals: %+v", m.TotalsByFootageType["project-day"])
	}
}

func TestWriteManifestOnlyTouchesManifest(t *testing.T) {
	workingRoot := t.TempDir()
	projectFolder := "smith-wedding"

	m := BuildManifest("proj-1", 1700000000, []ManifestFileEntry{{Fingerprint: "a", Medium: "modern", Size: 10}})
	if err := WriteManifest(workingRoot, projectFolder, m); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	docsDir := documentsDir(workingRoot, projectFolder)
	entries, err := os.ReadDir(docsDir)
	if err != nil {
		t.Fatalf("read documents dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "manifest.json" {
		t.Fatalf("expected only manifest.json written, got %v", entries)
	}
}

func TestWriteReadmeRendersTotals(t *testing.T) {
	workingRoot := t.TempDir()
	projectFolder := "smith-wedding"

	project := ProjectDoc{ID: "proj-1", Name: "Smith Wedding", FolderName: projectFolder}
	manifest := BuildManifest("proj-1", 1700000000, []ManifestFileEntry{
		{Fingerprint: "a", Medium: "modern", FootageType: "project-day", Size: 1 << 20},
	})
	sessions := []ImportLogEntry{{SessionID: "sess-1", Status: "completed", ProcessedFiles: 1}}

	if err := WriteReadme(workingRoot, projectFolder, project, manifest, sessions); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(documentsDir(workingRoot, projectFolder), "README.txt"))
	if err != nil {
		t.Fatalf("read readme: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "Smith Wedding") || !strings.Contains(text, "sess-1") {
		t.Fatalf("readme missing expected content: %s", text)
	}
}
