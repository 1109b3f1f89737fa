package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ContainerProbe extracts duration/resolution/codec/bitrate metadata by
// shelling out to ffprobe. Grounded on the teacher's
// internal/ffmpeg/probe.go: same ffprobe JSON-shape parsing, retargeted
// from the teacher's transcode-oriented ProbeResult to this package's
// MediaInfo.
type ContainerProbe struct {
	ffprobePath string
}

// NewContainerProbe returns a probe that invokes the given ffprobe binary
// (or "ffprobe" if empty, resolved via PATH).
func NewContainerProbe(ffprobePath string) *ContainerProbe {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &ContainerProbe{ffprobePath: ffprobePath}
}

func (p *ContainerProbe) Name() string { return "container-probe" }

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	Tags       struct {
		MajorBrand  string `json:"major_brand"`
		CreateTime  string `json:"creation_time"`
		GPSLocation string `json:"location"`
	} `json:"tags"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

func (p *ContainerProbe) run(ctx context.Context, path string) (*ffprobeOutput, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("ffprobe: parse output: %w", err)
	}
	return &parsed, nil
}

func (p *ContainerProbe) Probe(ctx context.Context, path string) (MediaInfo, error) {
	parsed, err := p.run(ctx, path)
	if err != nil {
		return MediaInfo{}, err
	}

	info := MediaInfo{MajorBrand: parsed.Format.Tags.MajorBrand}

	if parsed.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			ms := int64(secs * 1000)
			info.Duration = &ms
		}
	}
	if parsed.Format.BitRate != "" {
		if br, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
			info.BitRate = &br
		}
	}
	if parsed.Format.Tags.CreateTime != "" {
		if t, err := time.Parse(time.RFC3339, parsed.Format.Tags.CreateTime); err == nil {
			secs := t.Unix()
			info.RecordingAt = &secs
		}
	}

	for _, s := range parsed.Streams {
		if s.CodecType == "video" && info.Codec == "" {
			info.Codec = s.CodecName
			w, h := s.Width, s.Height
			info.Width = &w
			info.Height = &h
			fr := parseFrameRate(s.RFrameRate)
			if fr == 0 {
				fr = parseFrameRate(s.AvgFrameRate)
			}
			info.FrameRate = &fr
		}
	}

	return info, nil
}

func (p *ContainerProbe) RawJSON(ctx context.Context, path string) ([]byte, error) {
	parsed, err := p.run(ctx, path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(parsed)
}

// parseFrameRate parses ffprobe's "num/den" frame rate strings.
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
