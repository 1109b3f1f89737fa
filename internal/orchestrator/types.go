// Package orchestrator owns the import-session state machine (spec.md
// §4.9), walking a session through scan, hash, copy, validate, and
// finalize, persisting progress at every stage boundary the way the
// teacher's job queue persists after every mutation (internal/jobs/queue.go's
// save-after-every-transition idiom, generalized from one row to a
// session plus running counters).
package orchestrator

import "fmt"

// Status is one of the session states spec.md §4.9 names.
type Status string

const (
	StatusPending     Status = "pending"
	StatusScanning    Status = "scanning"
	StatusHashing     Status = "hashing"
	StatusCopying     Status = "copying"
	StatusValidating  Status = "validating"
	StatusFinalizing  Status = "finalizing"
	StatusCompleted   Status = "completed"
	StatusPaused      Status = "paused"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Stage is the ordinal position of a non-terminal status, stored as
// SessionRecord.LastStage so resumption knows where to re-enter.
type Stage int

const (
	StageScan Stage = iota + 1
	StageHash
	StageCopy
	StageValidate
	StageFinalize
)

var stageStatus = map[Stage]Status{
	StageScan:     StatusScanning,
	StageHash:     StatusHashing,
	StageCopy:     StatusCopying,
	StageValidate: StatusValidating,
	StageFinalize: StatusFinalizing,
}

// resumable reports whether status is one the orchestrator will re-enter
// on restart when the session's Resumable flag is set (spec.md §4.9).
func resumable(s Status) bool {
	switch s {
	case StatusScanning, StatusHashing, StatusCopying, StatusValidating, StatusFinalizing, StatusPaused:
		return true
	default:
		return false
	}
}

// canTransition enforces the diagram in spec.md §4.9: forward progress
// through the five stages, cancellation from any non-terminal state,
// failure from any state except completed and cancelled, and pause only
// from copying (the
// network-failure condition).
func canTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch to {
	case StatusCancelled:
		return from != StatusCompleted && from != StatusFailed && from != StatusCancelled
	case StatusFailed:
		return from != StatusCompleted && from != StatusCancelled
	case StatusPaused:
		return from == StatusCopying
	}

	// A session paused on a network-failure condition resumes straight
	// back into copying (spec.md §4.9).
	if from == StatusPaused {
		return to == StatusCopying
	}

	order := []Status{StatusPending, StatusScanning, StatusHashing, StatusCopying, StatusValidating, StatusFinalizing, StatusCompleted}
	fromIdx, toIdx := -1, -1
	for i, s := range order {
		if s == from {
			fromIdx = i
		}
		if s == to {
			toIdx = i
		}
	}
	if fromIdx == -1 || toIdx == -1 {
		return false
	}
	return toIdx == fromIdx+1
}

// ErrInvalidTransition is returned when a requested status change
// violates the state machine.
type ErrInvalidTransition struct {
	From, To Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("orchestrator: invalid transition %s -> %s", e.From, e.To)
}
