package metadata

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// XMLSidecarProvider reads the XML sidecar some camcorders and NLEs write
// next to a clip (Panasonic/Sony-style <NonRealTimeMeta>/<Duration>/
// <Device> documents). No library in the retrieved pack parses these
// vendor-specific schemas, and they are simple enough that
// encoding/xml's generic decoding covers every field spec.md needs — a
// third-party XML library would add nothing stdlib doesn't already do
// here, so stdlib is used deliberately, not by default.
type XMLSidecarProvider struct{}

func NewXMLSidecarProvider() *XMLSidecarProvider { return &XMLSidecarProvider{} }

func (p *XMLSidecarProvider) Name() string { return "xml-sidecar" }

// sidecarPath returns the path to the sidecar with extension ext for a
// media file, if one exists alongside it (same basename, ext as given or
// upper-cased). It serves both .xml and .moi sidecars.
func sidecarPath(mediaPath, ext string) (string, bool) {
	base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	for _, candidate := range []string{base + ext, base + strings.ToUpper(ext)} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// nonRealTimeMeta is a loose model of the subset of the Panasonic/Sony
// NRT metadata schema spec.md's providers need. Unknown elements are
// ignored by encoding/xml, so this struct only needs to name the fields
// this provider actually uses.
type nonRealTimeMeta struct {
	XMLName xml.Name `xml:"NonRealTimeMeta"`
	Device  struct {
		Manufacturer string `xml:"manufacturer,attr"`
		Model        string `xml:"modelName,attr"`
	} `xml:"Device"`
	Duration struct {
		Value string `xml:"value,attr"`
	} `xml:"Duration"`
	VideoFormat struct {
		VideoFrame struct {
			Width     int    `xml:"width,attr"`
			Height    int    `xml:"height,attr"`
			CaptureFps string `xml:"captureFps,attr"`
		} `xml:"VideoFrame"`
	} `xml:"VideoFormat"`
	CreationDate struct {
		Value string `xml:"value,attr"`
	} `xml:"CreationDate"`
}

func (p *XMLSidecarProvider) load(path string) (*nonRealTimeMeta, []byte, error) {
	sc, ok := sidecarPath(path, ".xml")
	if !ok {
		return nil, nil, &ErrUnsupported{Provider: p.Name(), Path: path}
	}
	raw, err := os.ReadFile(sc)
	if err != nil {
		return nil, nil, fmt.Errorf("metadata: read xml sidecar: %w", err)
	}
	var meta nonRealTimeMeta
	if err := xml.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("metadata: parse xml sidecar: %w", err)
	}
	return &meta, raw, nil
}

func (p *XMLSidecarProvider) Probe(ctx context.Context, path string) (MediaInfo, error) {
	meta, _, err := p.load(path)
	if err != nil {
		return MediaInfo{}, err
	}

	info := MediaInfo{
		Make:  meta.Device.Manufacturer,
		Model: meta.Device.Model,
	}
	if meta.Duration.Value != "" {
		if secs, err := strconv.ParseFloat(meta.Duration.Value, 64); err == nil {
			ms := int64(secs * 1000)
			info.Duration = &ms
		}
	}
	if meta.VideoFormat.VideoFrame.Width > 0 {
		w := meta.VideoFormat.VideoFrame.Width
		h := meta.VideoFormat.VideoFrame.Height
		info.Width = &w
		info.Height = &h
	}
	if fr, err := strconv.ParseFloat(meta.VideoFormat.VideoFrame.CaptureFps, 64); err == nil && fr > 0 {
		info.FrameRate = &fr
	}

	return info, nil
}

func (p *XMLSidecarProvider) RawJSON(ctx context.Context, path string) ([]byte, error) {
	_, raw, err := p.load(path)
	if err != nil {
		return nil, err
	}
	// The sidecar is already a self-describing document; store it as a
	// JSON string field rather than re-deriving a JSON schema from XML.
	return marshalRawString(raw), nil
}
