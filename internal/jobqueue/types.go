// Package jobqueue is the durable, polled post-ingest work queue
// (spec.md §4.6): per-kind concurrency caps, priority scheduling,
// dependency edges, retries, dead-lettering, and progress events.
// Generalized from the teacher's internal/jobs package (atomic
// claim-by-conditional-update, subscriber broadcast channel) off its
// in-memory JSON-file Queue onto a SQLite table sharing the same
// *sql.DB handle as internal/repo, per the single-handle-per-process
// idiom spec.md §9 asks for.
package jobqueue

import "time"

// Kind names a unit of post-ingest work. The queue's per-kind
// concurrency caps and priority table are keyed by this.
type Kind string

const (
	KindIntegrity   Kind = "integrity"
	KindThumbnail   Kind = "thumbnail"
	KindProxy       Kind = "proxy"
	KindMLExtract   Kind = "ml-extract"
	KindEnhancement Kind = "enhancement"
)

// Status is a job's lifecycle state (spec.md §3 "Job record").
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusDead       Status = "dead"
)

// Job is one unit of queued work.
type Job struct {
	ID            string
	Kind          Kind
	Payload       []byte // opaque, caller-defined encoding (typically JSON)
	FileID        string
	ProjectID     string
	Priority      int
	DependsOn     string // job id, empty if none
	Status        Status
	RetryCount    int
	MaxRetries    int
	Progress      float64
	ProgressMsg   string
	Error         string
	CreatedAt     time.Time
	StartedAt     time.Time
	CompletedAt   time.Time
	ProcessingMs  int64
}

// IsTerminal reports whether the job will not be claimed again.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusComplete || j.Status == StatusDead
}

// DeadLetter is the retained snapshot of a job that exceeded its retry
// budget (spec.md §3 "Dead-letter entry").
type DeadLetter struct {
	ID           string
	JobID        string
	Kind         Kind
	Payload      []byte
	Error        string
	Acknowledged bool
	CreatedAt    time.Time
}

// Event is a progress/completion/failure notification the queue
// broadcasts to subscribers, keyed by job id: spec.md §6's
// `job:progress` / `job:complete` / `job:failed` wire events, transport
// left unspecified here — internal/api adapts Event to SSE. A
// dead-lettered job (retries exhausted) also reports as "job:failed";
// the durable row's own status distinguishes "will retry" from "dead"
// for anything that needs to tell them apart.
type Event struct {
	Type    string // "job:progress" | "job:complete" | "job:failed" | "asset:ready"
	JobID   string
	Kind    Kind
	Percent float64
	Message string
	Error   string

	// Artifact and Path are set only on "asset:ready": the kind of
	// derivative that became available ("thumbnail" | "proxy" |
	// "metadata") and where it was written.
	Artifact string
	Path     string
}

// DefaultConcurrency is the recommended per-kind cap table from
// spec.md §4.6.
var DefaultConcurrency = map[Kind]int{
	KindIntegrity:   4,
	KindThumbnail:   4,
	KindProxy:       2,
	KindMLExtract:   1,
	KindEnhancement: 4,
}

// DefaultPriority is the recommended scheduling order from spec.md
// §4.6: integrity > thumbnails > proxy > ML extraction > enhancement.
var DefaultPriority = map[Kind]int{
	KindIntegrity:   50,
	KindThumbnail:   40,
	KindProxy:       30,
	KindMLExtract:   20,
	KindEnhancement: 10,
}

const DefaultMaxRetries = 3

const DefaultPollInterval = time.Second
