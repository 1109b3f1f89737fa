// Package metadata defines the pluggable metadata-extraction surface
// (spec.md §4.3, §9 "dynamic provider lookup"). Each Provider implements
// a small capability interface; the camera identifier and orchestrator
// consult an ordered list of them. Adding a new extractor never touches
// the pipeline — provider order is configuration, not code.
package metadata

import "context"

// MediaInfo carries whatever technical and provenance metadata a
// provider could extract. Every field is optional: providers are
// expected to fail partially, and the core tolerates it.
type MediaInfo struct {
	Make         string
	Model        string
	Lens         string
	RecordingAt  *int64 // unix seconds, nil if unknown
	Duration     *int64 // milliseconds
	Width        *int
	Height       *int
	FrameRate    *float64
	Codec        string
	BitRate      *int64
	MajorBrand   string
	GPSLatitude  *float64
	GPSLongitude *float64
}

// Provider is the capability interface every metadata extractor
// implements (spec.md §9's "small capability interface {probe, rawJson}").
type Provider interface {
	// Name identifies the provider for logging and for the camera
	// identifier's match-source tag.
	Name() string

	// Probe extracts structured metadata from path. A provider that
	// cannot handle path at all (wrong file kind) returns
	// ErrUnsupported; a provider that handles the kind but can't read
	// this particular file returns a wrapped error.
	Probe(ctx context.Context, path string) (MediaInfo, error)

	// RawJSON returns the provider's raw extracted data as a JSON blob
	// for persistence alongside the file record (spec.md §4.5 step 4),
	// or nil if the provider has nothing to offer for path.
	RawJSON(ctx context.Context, path string) ([]byte, error)
}

// ErrUnsupported is returned by Probe/RawJSON when the provider does not
// handle the given file's kind at all (as opposed to handling the kind
// but failing to read this particular file).
type ErrUnsupported struct {
	Provider string
	Path     string
}

func (e *ErrUnsupported) Error() string {
	return "metadata: " + e.Provider + " does not support " + e.Path
}
