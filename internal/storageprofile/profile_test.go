package storageprofile_test

import (
	"errors"
	"syscall"
	"testing"

	"github.com/nightfoxfilms/ingestcore/internal/storageprofile"
)

func TestDetectUNCPathIsNetwork(t *testing.T) {
	d := storageprofile.NewDetector()
	p := d.Detect(`\\nas01\wedding-footage\card01`)
	if p.Kind != storageprofile.KindNetwork {
		t.Fatalf("expected network profile for UNC path, got %s", p.Kind)
	}
	if p.Concurrency != 1 {
		t.Errorf("network concurrency = %d, want 1", p.Concurrency)
	}
	if len(p.RetryDelays) != 5 {
		t.Errorf("network retry delays = %d, want 5", len(p.RetryDelays))
	}
}

func TestDetectLocalPathDefaults(t *testing.T) {
	d := storageprofile.NewDetector()
	p := d.Detect("/tmp/some/local/path")
	if p.Kind != storageprofile.KindLocal {
		t.Fatalf("expected local profile, got %s", p.Kind)
	}
	if p.BufferBytes != 64*1024 {
		t.Errorf("local buffer = %d, want 64KiB", p.BufferBytes)
	}
	if p.Concurrency != 4 {
		t.Errorf("local concurrency = %d, want 4", p.Concurrency)
	}
}

func TestIsRetryable(t *testing.T) {
	d := storageprofile.NewDetector()
	p := d.Detect(`\\nas01\share`)
	if !p.IsRetryable("time-out") {
		t.Error("expected time-out to be retryable on network profile")
	}
	if p.IsRetryable("unknown-code") {
		t.Error("unknown code should not be retryable")
	}
}

func TestClassifyError(t *testing.T) {
	if got := storageprofile.ClassifyError(syscall.ETIMEDOUT); got != "time-out" {
		t.Errorf("ETIMEDOUT classified as %q", got)
	}
	if got := storageprofile.ClassifyError(syscall.ESTALE); got != "stale-handle" {
		t.Errorf("ESTALE classified as %q", got)
	}
	if got := storageprofile.ClassifyError(errors.New("boom")); got != "" {
		t.Errorf("unrelated error classified as %q, want empty", got)
	}
}
