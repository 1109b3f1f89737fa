package copier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nightfoxfilms/ingestcore/internal/storageprofile"
)

// NetworkFailureError is the distinguished condition raised when
// consecutive retryable failures reach the configured abort threshold
// (spec.md §4.4, §9). It is not a crash: the orchestrator type-switches
// on it and transitions the session to paused/resumable rather than
// failed.
type NetworkFailureError struct {
	ConsecutiveFailures int
	LastErr             error
}

func (e *NetworkFailureError) Error() string {
	return fmt.Sprintf("copier: %d consecutive retryable failures, last: %v", e.ConsecutiveFailures, e.LastErr)
}

func (e *NetworkFailureError) Unwrap() error {
	return e.LastErr
}

// isRetryableFailure reports whether err is one this engine's retry loop
// recognises as transient at all (as opposed to a permanent condition like
// a missing source file). It does not by itself decide whether to retry —
// that's the storage profile's retryable-code table — only whether the
// consecutive-failure counter should treat this as a transient strike.
func isRetryableFailure(err error) bool {
	return classifyError(err) != ""
}

// classifyError maps a raw I/O error to the storage profile's retryable
// error code vocabulary (storageprofile.Profile.RetryableErrorCodes).
// storageprofile.ClassifyError is tried first (errors.As against
// syscall.Errno/net.Error); its coverage is thin on Windows, where several
// POSIX errno names it matches against don't exist, so an error it can't
// place falls through to text matching here instead of being treated as
// permanent.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if code := storageprofile.ClassifyError(err); code != "" {
		return code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "time-out"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return "time-out"
	case strings.Contains(msg, "connection reset"):
		return "connection-reset"
	case strings.Contains(msg, "network is unreachable"):
		return "network-unreachable"
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "host is down"), strings.Contains(msg, "host unreachable"):
		return "host-unreachable"
	case strings.Contains(msg, "resource busy"), strings.Contains(msg, "device or resource busy"):
		return "device-busy"
	case strings.Contains(msg, "stale file handle") || strings.Contains(msg, "stale nfs file handle"):
		return "stale-handle"
	case strings.Contains(msg, "broken pipe"), strings.Contains(msg, "connection refused"):
		return "transient-network"
	default:
		return ""
	}
}
