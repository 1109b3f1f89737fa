// Package storageprofile decides, for a given path, whether I/O against it
// should behave like a local disk or a flaky network share, and returns
// the tuple of buffering, delay, concurrency, and retry parameters that
// every other component in the pipeline reads its I/O behaviour from
// (spec.md §4.1). No buffer size, delay, or retry table is allowed to live
// anywhere else in the core.
package storageprofile

import (
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/nightfoxfilms/ingestcore/internal/logger"
)

// Kind classifies the locality of a path.
type Kind string

const (
	KindLocal   Kind = "local"
	KindNetwork Kind = "network"
)

// Profile is the full set of I/O parameters for a storage locality.
// Returned profiles are immutable; callers read fields, they never derive
// buffer sizes or delays themselves.
type Profile struct {
	Kind                Kind
	BufferBytes         int
	InterOpDelay        time.Duration
	Concurrency         int
	RetryDelays         []time.Duration
	RetryableErrorCodes []string // ClassifyError codes such as "time-out", matched by IsRetryable
}

// localDefault and networkDefault are the recommended defaults from
// spec.md §4.1. They are copied (never shared) by Detect so callers can
// freely mutate the RetryDelays/RetryableErrorCodes slices they receive.
func localDefault() Profile {
	return Profile{
		Kind:        KindLocal,
		BufferBytes: 64 * 1024,
		InterOpDelay: 0,
		Concurrency:  4,
	}
}

func networkDefault() Profile {
	return Profile{
		Kind:         KindNetwork,
		BufferBytes:  1 << 20,
		InterOpDelay: 10 * time.Millisecond,
		Concurrency:  1,
		RetryDelays: []time.Duration{
			250 * time.Millisecond,
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
		},
		RetryableErrorCodes: []string{
			"host-unreachable", "network-unreachable", "transient-network",
			"stale-handle", "time-out", "device-busy", "connection-reset",
		},
	}
}

// Detector classifies paths and can be overridden in tests.
type Detector struct {
	// networkFSTypes are filesystem type strings gopsutil reports for
	// remote mounts. Matched case-insensitively as a substring.
	networkFSTypes []string
}

// NewDetector returns a Detector configured with the common remote
// filesystem type names across platforms (SMB/CIFS on Linux and macOS,
// NFS everywhere, 9P for some VM-shared folders).
func NewDetector() *Detector {
	return &Detector{
		networkFSTypes: []string{"smb", "cifs", "nfs", "9p", "afpfs"},
	}
}

// Detect returns the I/O profile for path. It first checks OS-specific
// path-shape cues (UNC paths on Windows, well-known remote URL schemes),
// then falls back to asking the OS which partition backs the path and
// comparing its filesystem type against the known-remote list.
func (d *Detector) Detect(path string) Profile {
	if looksNetworkByShape(path) {
		return networkDefault()
	}

	if d.looksNetworkByMount(path) {
		return networkDefault()
	}

	return localDefault()
}

// looksNetworkByShape recognises paths that are unambiguously remote from
// their spelling alone, without touching the filesystem: Windows UNC
// paths (\\host\share\...) and common remote URL schemes that a "path"
// might actually be (smb://, nfs://, afp://).
func looksNetworkByShape(path string) bool {
	if strings.HasPrefix(path, `\\`) {
		return true
	}
	lower := strings.ToLower(path)
	for _, scheme := range []string{"smb://", "nfs://", "afp://", "cifs://"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// looksNetworkByMount asks the OS which partition backs path and checks
// its filesystem type. Best-effort: any error classifying the path is
// treated as "not network" so the pipeline defaults to the more permissive
// local profile rather than stalling on an undetectable mount.
func (d *Detector) looksNetworkByMount(path string) bool {
	partitions, err := disk.Partitions(true)
	if err != nil {
		logger.Debug("storageprofile: partition lookup failed", "error", err)
		return false
	}

	best := ""
	bestFSType := ""
	for _, p := range partitions {
		if strings.HasPrefix(path, p.Mountpoint) && len(p.Mountpoint) > len(best) {
			best = p.Mountpoint
			bestFSType = p.Fstype
		}
	}
	if best == "" {
		return false
	}

	fsType := strings.ToLower(bestFSType)
	for _, netType := range d.networkFSTypes {
		if strings.Contains(fsType, netType) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether errCode (one of Profile.RetryableErrorCodes'
// vocabulary) should trigger a retry rather than a permanent failure. The
// caller is responsible for mapping a concrete error to this vocabulary;
// see internal/copier for the mapping used during copy.
func (p Profile) IsRetryable(code string) bool {
	for _, c := range p.RetryableErrorCodes {
		if c == code {
			return true
		}
	}
	return false
}

// GOOS is exposed for tests and callers that want to special-case
// Windows UNC detection explicitly rather than relying on path shape.
var GOOS = runtime.GOOS
