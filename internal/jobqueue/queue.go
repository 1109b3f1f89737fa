package jobqueue

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload BLOB,
	file_id TEXT,
	project_id TEXT,
	priority INTEGER NOT NULL DEFAULT 0,
	depends_on TEXT,
	status TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	progress REAL NOT NULL DEFAULT 0,
	progress_msg TEXT,
	error TEXT,
	created_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT,
	processing_ms INTEGER
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload BLOB,
	error TEXT,
	acknowledged INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_kind ON jobs(status, kind);
CREATE INDEX IF NOT EXISTS idx_jobs_depends_on ON jobs(depends_on);
`

// Queue is the table-backed job queue. Multiple Queue values may share
// one *sql.DB (e.g. the same handle internal/repo opened), matching the
// teacher's one-database-many-tables layout.
type Queue struct {
	db *sql.DB

	subsMu      sync.RWMutex
	subscribers map[chan Event]struct{}
}

// Open prepares the jobs/dead_letters tables on db and returns a Queue
// bound to it. It does not own db's lifecycle; the caller closes it.
func Open(db *sql.DB) (*Queue, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("jobqueue: create schema: %w", err)
	}
	return &Queue{db: db, subscribers: make(map[chan Event]struct{})}, nil
}

// Enqueue inserts a new pending job. If priority is zero, the kind's
// DefaultPriority is used; if maxRetries is zero, DefaultMaxRetries is
// used.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, payload []byte, fileID, projectID string, priority int, dependsOn string, maxRetries int) (string, error) {
	if priority == 0 {
		priority = DefaultPriority[kind]
	}
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	id := uuid.NewString()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, payload, file_id, project_id, priority, depends_on, status, max_retries, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, string(kind), payload, nullString(fileID), nullString(projectID), priority, nullString(dependsOn),
		string(StatusPending), maxRetries, nowString())
	if err != nil {
		return "", fmt.Errorf("jobqueue: enqueue: %w", err)
	}
	return id, nil
}

// Claim atomically moves the highest-priority eligible pending job of
// kind to processing and returns it. Eligible means: no dependency, or
// the dependency's status is complete (spec.md invariant 5). Ties are
// broken by id ascending. Returns (nil, nil) if nothing is claimable.
func (q *Queue) Claim(ctx context.Context, kind Kind) (*Job, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT j.id FROM jobs j
		WHERE j.kind = ? AND j.status = ?
		  AND (j.depends_on IS NULL OR EXISTS (
		        SELECT 1 FROM jobs d WHERE d.id = j.depends_on AND d.status = ?
		  ))
		ORDER BY j.priority DESC, j.id ASC
		LIMIT 1
	`, string(kind), string(StatusPending), string(StatusComplete))

	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	// The conditional UPDATE is the actual atomic claim: if another
	// worker raced us between the SELECT and here, RowsAffected is 0
	// and we report no job claimed rather than double-processing one.
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?
	`, string(StatusProcessing), nowString(), id, string(StatusPending))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	return q.Get(ctx, id)
}

// Get fetches a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	row := q.db.QueryRowContext(ctx, jobSelectColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// Progress records a worker's progress callback and broadcasts it.
func (q *Queue) Progress(ctx context.Context, id string, percent float64, message string) error {
	kind, err := q.kindOf(ctx, id)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `UPDATE jobs SET progress = ?, progress_msg = ? WHERE id = ? AND status = ?`,
		percent, nullString(message), id, string(StatusProcessing))
	if err != nil {
		return err
	}
	q.broadcast(Event{Type: "job:progress", JobID: id, Kind: kind, Percent: percent, Message: message})
	return nil
}

// Complete marks a job complete and broadcasts a completion event.
func (q *Queue) Complete(ctx context.Context, id string) error {
	kind, err := q.kindOf(ctx, id)
	if err != nil {
		return err
	}

	var startedAt sql.NullString
	_ = q.db.QueryRowContext(ctx, "SELECT started_at FROM jobs WHERE id = ?", id).Scan(&startedAt)

	completed := time.Now().UTC()
	var elapsedMs int64
	if startedAt.Valid {
		if t, err := time.Parse(time.RFC3339, startedAt.String); err == nil {
			elapsedMs = completed.Sub(t).Milliseconds()
		}
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, progress = 100, completed_at = ?, processing_ms = ? WHERE id = ?
	`, string(StatusComplete), completed.Format(time.RFC3339), elapsedMs, id)
	if err != nil {
		return err
	}
	q.broadcast(Event{Type: "job:complete", JobID: id, Kind: kind})
	return nil
}

// AssetReady broadcasts an "asset:ready" event for a derivative a
// handler just finished writing (spec.md §6: thumbnail, proxy, or
// metadata becoming available for a file).
func (q *Queue) AssetReady(id string, kind Kind, artifact, path string) {
	q.broadcast(Event{Type: "asset:ready", JobID: id, Kind: kind, Artifact: artifact, Path: path})
}

// Fail increments retry_count and either requeues the job as pending
// (it keeps its id, so it keeps its place in the id order Claim uses
// among jobs of equal priority) or, once retries are
// exhausted, writes a dead-letter row and marks the job dead (spec.md
// §4.6's retry/dead-letter rule).
func (q *Queue) Fail(ctx context.Context, id string, errMsg string) error {
	job, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("jobqueue: fail: job %s not found", id)
	}

	retryCount := job.RetryCount + 1
	if retryCount > job.MaxRetries {
		if _, err := q.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, retry_count = ?, error = ?, completed_at = ? WHERE id = ?
		`, string(StatusDead), retryCount, errMsg, nowString(), id); err != nil {
			return err
		}
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO dead_letters (id, job_id, kind, payload, error, created_at) VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), id, string(job.Kind), job.Payload, errMsg, nowString()); err != nil {
			return err
		}
		q.broadcast(Event{Type: "job:failed", JobID: id, Kind: job.Kind, Error: errMsg})
		return nil
	}

	if _, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, retry_count = ?, error = ?, started_at = NULL, progress = 0 WHERE id = ?
	`, string(StatusPending), retryCount, errMsg, id); err != nil {
		return err
	}
	q.broadcast(Event{Type: "job:failed", JobID: id, Kind: job.Kind, Error: errMsg})
	return nil
}

// RetryDeadLetter creates a fresh pending job from an acknowledged or
// unacknowledged dead-letter entry's payload, per spec.md §4.6's
// operator-retry path.
func (q *Queue) RetryDeadLetter(ctx context.Context, deadLetterID string) (string, error) {
	var jobID, kind string
	var payload []byte
	err := q.db.QueryRowContext(ctx, "SELECT job_id, kind, payload FROM dead_letters WHERE id = ?", deadLetterID).
		Scan(&jobID, &kind, &payload)
	if err != nil {
		return "", fmt.Errorf("jobqueue: retry dead letter: %w", err)
	}

	var fileID, projectID, dependsOn sql.NullString
	var priority, maxRetries int
	_ = q.db.QueryRowContext(ctx, "SELECT file_id, project_id, depends_on, priority, max_retries FROM jobs WHERE id = ?", jobID).
		Scan(&fileID, &projectID, &dependsOn, &priority, &maxRetries)

	return q.Enqueue(ctx, Kind(kind), payload, fileID.String, projectID.String, priority, dependsOn.String, maxRetries)
}

// AcknowledgeDeadLetters marks dead-letter rows as acknowledged so an
// operator UI can stop surfacing them as new.
func (q *Queue) AcknowledgeDeadLetters(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := q.db.ExecContext(ctx, "UPDATE dead_letters SET acknowledged = 1 WHERE id = ?", id); err != nil {
			return err
		}
	}
	return nil
}

// FindPending returns up to limit pending jobs of kind, ordered for
// display (not claim order exactly, but priority/id consistent with
// Claim's selection).
func (q *Queue) FindPending(ctx context.Context, kind Kind, limit int) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, jobSelectColumns+`
		FROM jobs WHERE kind = ? AND status = ? ORDER BY priority DESC, id ASC LIMIT ?
	`, string(kind), string(StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func (q *Queue) kindOf(ctx context.Context, id string) (Kind, error) {
	var kind string
	err := q.db.QueryRowContext(ctx, "SELECT kind FROM jobs WHERE id = ?", id).Scan(&kind)
	return Kind(kind), err
}

// Subscribe returns a channel of queue Events. The channel is buffered;
// a slow consumer drops events rather than blocking the queue, mirroring
// the teacher's broadcast idiom in internal/jobs/queue.go.
func (q *Queue) Subscribe() chan Event {
	ch := make(chan Event, 100)
	q.subsMu.Lock()
	q.subscribers[ch] = struct{}{}
	q.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription.
func (q *Queue) Unsubscribe(ch chan Event) {
	q.subsMu.Lock()
	delete(q.subscribers, ch)
	q.subsMu.Unlock()
	close(ch)
}

func (q *Queue) broadcast(e Event) {
	q.subsMu.RLock()
	defer q.subsMu.RUnlock()
	for ch := range q.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Stats summarizes queue depth by status, used by internal/metrics.
type Stats struct {
	Pending    int
	Processing int
	Complete   int
	Error      int
	Dead       int
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	row := q.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'complete' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'dead' THEN 1 ELSE 0 END)
		FROM jobs
	`)
	var pending, processing, complete, errored, dead sql.NullInt64
	if err := row.Scan(&pending, &processing, &complete, &errored, &dead); err != nil {
		return s, err
	}
	s.Pending = int(pending.Int64)
	s.Processing = int(processing.Int64)
	s.Complete = int(complete.Int64)
	s.Error = int(errored.Int64)
	s.Dead = int(dead.Int64)
	return s, nil
}

const jobSelectColumns = `SELECT
	id, kind, payload, file_id, project_id, priority, depends_on, status,
	retry_count, max_retries, progress, progress_msg, error,
	created_at, started_at, completed_at, processing_ms`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var kind, status string
	var payload []byte
	var fileID, projectID, dependsOn, progressMsg, errStr sql.NullString
	var createdAt, startedAt, completedAt sql.NullString
	var processingMs sql.NullInt64

	err := row.Scan(&j.ID, &kind, &payload, &fileID, &projectID, &j.Priority, &dependsOn, &status,
		&j.RetryCount, &j.MaxRetries, &j.Progress, &progressMsg, &errStr,
		&createdAt, &startedAt, &completedAt, &processingMs)
	if err != nil {
		return nil, err
	}

	j.Kind = Kind(kind)
	j.Status = Status(status)
	j.Payload = payload
	j.FileID = fileID.String
	j.ProjectID = projectID.String
	j.DependsOn = dependsOn.String
	j.ProgressMsg = progressMsg.String
	j.Error = errStr.String
	j.ProcessingMs = processingMs.Int64
	j.CreatedAt = parseTime(createdAt.String)
	j.StartedAt = parseTime(startedAt.String)
	j.CompletedAt = parseTime(completedAt.String)

	return &j, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
