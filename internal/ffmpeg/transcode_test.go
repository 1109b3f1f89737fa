package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireFFmpeg(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not found on PATH")
	}
	return path
}

func writeTestClip(t *testing.T, dir string) string {
	t.Helper()
	ffmpegPath := requireFFmpeg(t)
	clip := filepath.Join(dir, "source.mp4")
	cmd := exec.Command(ffmpegPath,
		"-f", "lavfi", "-i", "testsrc=duration=1:size=320x240:rate=10",
		"-c:v", "libx264", "-preset", "ultrafast", "-y", clip,
	)
	if err := cmd.Run(); err != nil {
		t.Skipf("could not synthesize a test clip: %v", err)
	}
	return clip
}

func TestGenerateProxyProducesOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg invocation in short mode")
	}
	dir := t.TempDir()
	clip := writeTestClip(t, dir)

	transcoder := NewTranscoder("ffmpeg")
	outputPath := filepath.Join(dir, "proxies", "source.mp4")
	progressCh := make(chan Progress, 16)

	var updates []Progress
	done := make(chan struct{})
	go func() {
		for p := range progressCh {
			updates = append(updates, p)
		}
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := transcoder.GenerateProxy(ctx, clip, outputPath, time.Second, ProxyOptions{MaxHeight: 180}, progressCh)
	<-done
	if err != nil {
		t.Fatalf("generate proxy: %v", err)
	}
	if result.OutputSize == 0 {
		t.Fatal("expected non-zero proxy size")
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Fatalf("expected proxy file at %s: %v", outputPath, err)
	}
	if _, err := os.Stat(outputPath + ".tmp.mp4"); !os.IsNotExist(err) {
		t.Fatal("expected temp file to be renamed away")
	}
}

func TestGenerateThumbnailProducesOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg invocation in short mode")
	}
	dir := t.TempDir()
	clip := writeTestClip(t, dir)

	transcoder := NewTranscoder("ffmpeg")
	outputPath := filepath.Join(dir, "thumbnails", "source.jpg")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := transcoder.GenerateThumbnail(ctx, clip, outputPath, 0); err != nil {
		t.Fatalf("generate thumbnail: %v", err)
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		t.Fatalf("expected thumbnail file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected non-empty thumbnail")
	}
}

func TestScanProgressParsesLines(t *testing.T) {
	lines := strings.Join([]string{
		"frame=10",
		"fps=25.0",
		"out_time_us=500000",
		"speed=1.2x",
		"progress=continue",
		"frame=20",
		"out_time_us=1000000",
		"speed=1.0x",
		"progress=end",
	}, "\n")

	ch := make(chan Progress, 8)
	scanProgress(strings.NewReader(lines), time.Second, ch)
	close(ch)

	var last Progress
	count := 0
	for p := range ch {
		last = p
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 progress updates, got %d", count)
	}
	if last.Frame != 20 {
		t.Fatalf("expected last frame 20, got %d", last.Frame)
	}
	if last.Percent != 100 {
		t.Fatalf("expected 100%% at full duration, got %v", last.Percent)
	}
}
