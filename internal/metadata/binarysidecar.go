package metadata

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// BinarySidecarProvider reads the small binary ".moi" index files that
// older tape-less camcorders (the "dadcam" medium) write alongside their
// MOD/TOD clips: a fixed-size header holding clip duration and
// recording-time fields. No parsing library exists for this
// vendor-specific format in the retrieved pack or the wider ecosystem, so
// this reads the known header layout directly with encoding/binary —
// stdlib is the only reasonable option for a proprietary fixed-layout
// binary header this small.
type BinarySidecarProvider struct{}

func NewBinarySidecarProvider() *BinarySidecarProvider { return &BinarySidecarProvider{} }

func (p *BinarySidecarProvider) Name() string { return "binary-sidecar" }

// moiHeader mirrors the fields this provider reads from the first 32
// bytes of a .moi file: a duration in 1/30000s units at offset 16, and a
// recording timestamp (seconds since 2000-01-01) at offset 24.
type moiHeader struct {
	DurationUnits  uint32
	RecordedOffset uint32
}

const moiEpochOffset = 946684800 // 2000-01-01T00:00:00Z in unix seconds

func (p *BinarySidecarProvider) load(path string) (*moiHeader, []byte, error) {
	sc, ok := sidecarPath(path, ".moi")
	if !ok {
		return nil, nil, &ErrUnsupported{Provider: p.Name(), Path: path}
	}
	raw, err := os.ReadFile(sc)
	if err != nil {
		return nil, nil, fmt.Errorf("metadata: read moi sidecar: %w", err)
	}
	if len(raw) < 28 {
		return nil, nil, fmt.Errorf("metadata: moi sidecar %s too short", sc)
	}

	h := &moiHeader{
		DurationUnits:  binary.LittleEndian.Uint32(raw[16:20]),
		RecordedOffset: binary.LittleEndian.Uint32(raw[24:28]),
	}
	return h, raw, nil
}

func (p *BinarySidecarProvider) Probe(ctx context.Context, path string) (MediaInfo, error) {
	h, _, err := p.load(path)
	if err != nil {
		return MediaInfo{}, err
	}

	info := MediaInfo{}
	if h.DurationUnits > 0 {
		ms := int64(h.DurationUnits) * 1000 / 30000
		info.Duration = &ms
	}
	if h.RecordedOffset > 0 {
		secs := int64(h.RecordedOffset) + moiEpochOffset
		info.RecordingAt = &secs
	}
	return info, nil
}

func (p *BinarySidecarProvider) RawJSON(ctx context.Context, path string) ([]byte, error) {
	_, raw, err := p.load(path)
	if err != nil {
		return nil, err
	}
	return marshalRawString(raw), nil
}

// marshalRawString base64-encodes an opaque byte blob (a non-JSON
// sidecar's raw bytes) into a JSON string, so callers that expect every
// provider's RawJSON to return valid JSON get it regardless of the
// underlying format.
func marshalRawString(raw []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(raw)
	b, _ := json.Marshal(encoded)
	return b
}
