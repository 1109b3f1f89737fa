package sidecar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeJSONAtomic marshals v as indented JSON and writes it to path via a
// temp-file-then-rename, so a reader never observes a half-written
// document (spec.md §4.7 "rewritten, not patched"). Grounded on the
// teacher's BuildTempPath/FinalizeTranscode temp-name idiom in
// internal/ffmpeg/transcode.go, applied here to small JSON documents
// instead of large media files.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("sidecar: marshal %s: %w", path, err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("sidecar: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".sidecar-*.tmp")
	if err != nil {
		return fmt.Errorf("sidecar: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sidecar: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sidecar: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sidecar: rename into place: %w", err)
	}
	return nil
}
