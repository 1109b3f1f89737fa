package metadata

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
)

// ProviderSet consults an ordered list of Providers for a path and merges
// their results, first provider wins per-field. Concurrent probes of the
// same path are collapsed via singleflight, grounded on the teacher's
// internal/browse/browse.go cache-dedup idiom.
type ProviderSet struct {
	providers []Provider
	group     singleflight.Group
}

// NewProviderSet returns a set that consults providers in the given
// order. Order is configuration: callers assemble the slice, the set
// never reorders it.
func NewProviderSet(providers ...Provider) *ProviderSet {
	return &ProviderSet{providers: providers}
}

// Probe merges MediaInfo from every provider that supports path, in
// order, with earlier providers' non-zero fields taking precedence over
// later ones (EXIF beats a filename-derived guess, for example).
func (s *ProviderSet) Probe(ctx context.Context, path string) (MediaInfo, []string) {
	v, _, _ := s.group.Do("probe:"+path, func() (interface{}, error) {
		merged := MediaInfo{}
		var usedBy []string
		for _, p := range s.providers {
			info, err := p.Probe(ctx, path)
			if err != nil {
				var unsupported *ErrUnsupported
				if !errors.As(err, &unsupported) {
					// A supported provider that failed to read this file
					// degrades to partial information per spec.md §7; we
					// simply skip its contribution and keep going.
				}
				continue
			}
			usedBy = append(usedBy, p.Name())
			merged = mergeInfo(merged, info)
		}
		return struct {
			info MediaInfo
			used []string
		}{merged, usedBy}, nil
	})

	result := v.(struct {
		info MediaInfo
		used []string
	})
	return result.info, result.used
}

// RawBlobs collects every provider's raw JSON contribution for
// persistence (spec.md §4.5 step 4), keyed by provider name. Providers
// that don't support path or fail are simply omitted.
func (s *ProviderSet) RawBlobs(ctx context.Context, path string) map[string][]byte {
	blobs := make(map[string][]byte)
	for _, p := range s.providers {
		raw, err := p.RawJSON(ctx, path)
		if err != nil || raw == nil {
			continue
		}
		blobs[p.Name()] = raw
	}
	return blobs
}

func mergeInfo(dst, src MediaInfo) MediaInfo {
	if dst.Make == "" {
		dst.Make = src.Make
	}
	if dst.Model == "" {
		dst.Model = src.Model
	}
	if dst.Lens == "" {
		dst.Lens = src.Lens
	}
	if dst.RecordingAt == nil {
		dst.RecordingAt = src.RecordingAt
	}
	if dst.Duration == nil {
		dst.Duration = src.Duration
	}
	if dst.Width == nil {
		dst.Width = src.Width
	}
	if dst.Height == nil {
		dst.Height = src.Height
	}
	if dst.FrameRate == nil {
		dst.FrameRate = src.FrameRate
	}
	if dst.Codec == "" {
		dst.Codec = src.Codec
	}
	if dst.BitRate == nil {
		dst.BitRate = src.BitRate
	}
	if dst.MajorBrand == "" {
		dst.MajorBrand = src.MajorBrand
	}
	if dst.GPSLatitude == nil {
		dst.GPSLatitude = src.GPSLatitude
	}
	if dst.GPSLongitude == nil {
		dst.GPSLongitude = src.GPSLongitude
	}
	return dst
}
