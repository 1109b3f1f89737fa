package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/nightfoxfilms/ingestcore/internal/logger"
)

// Handler processes one job of a registered kind. A handler reports
// percent-complete and an optional message by calling Queue.Progress
// with job.ID, surfaced via the queue's Event stream. A returned error
// causes the queue to retry or dead-letter the job per spec.md §4.6.
type Handler func(ctx context.Context, job Job) error

// ProgressFunc is the shape of a per-job progress callback. The pool
// does not build or pass one; handlers call Queue.Progress directly.
type ProgressFunc func(percent float64, message string)

type handlerEntry struct {
	fn Handler
}

// Pool runs one poller per registered kind, each bounded to that kind's
// concurrency cap (spec.md §4.6's "per-kind concurrency caps"),
// generalized from the teacher's WorkerPool (fixed worker count, single
// job type) to many kinds each with an independent cap and handler.
type Pool struct {
	queue        *Queue
	pollInterval time.Duration
	concurrency  map[Kind]int

	mu       sync.Mutex
	handlers map[Kind]handlerEntry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnJobStart/OnJobEnd let a caller mirror running-job counts into its
	// own instrumentation (internal/metrics's JobsRunning gauge) without
	// this package importing a metrics library itself. Either may be nil.
	OnJobStart func(kind Kind)
	OnJobEnd   func(kind Kind)
}

// NewPool builds a pool against queue. concurrency overrides
// DefaultConcurrency per kind where present; pollInterval defaults to
// DefaultPollInterval when zero.
func NewPool(queue *Queue, concurrency map[Kind]int, pollInterval time.Duration) *Pool {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	merged := make(map[Kind]int, len(DefaultConcurrency))
	for k, v := range DefaultConcurrency {
		merged[k] = v
	}
	for k, v := range concurrency {
		merged[k] = v
	}

	return &Pool{
		queue:        queue,
		pollInterval: pollInterval,
		concurrency:  merged,
		handlers:     make(map[Kind]handlerEntry),
	}
}

// Register binds a Handler to a Kind. Call before Start.
func (p *Pool) Register(kind Kind, fn Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = handlerEntry{fn: fn}
}

// Start launches one poller goroutine per registered kind.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.mu.Lock()
	kinds := make([]Kind, 0, len(p.handlers))
	for k := range p.handlers {
		kinds = append(kinds, k)
	}
	p.mu.Unlock()

	for _, kind := range kinds {
		limit := p.concurrency[kind]
		if limit <= 0 {
			limit = 1
		}
		sem := make(chan struct{}, limit)
		p.wg.Add(1)
		go p.pollKind(kind, sem)
	}
}

// Stop cancels all pollers and waits for in-flight handlers to return.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) pollKind(kind Kind, sem chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case sem <- struct{}{}:
		default:
			// At concurrency cap for this kind; wait for the next tick.
			continue
		}

		job, err := p.queue.Claim(p.ctx, kind)
		if err != nil {
			logger.Warn("jobqueue: claim failed", "kind", string(kind), "error", err)
			<-sem
			continue
		}
		if job == nil {
			<-sem
			continue
		}

		p.wg.Add(1)
		go func(j Job) {
			defer p.wg.Done()
			defer func() { <-sem }()
			p.run(kind, j)
		}(*job)
	}
}

func (p *Pool) run(kind Kind, job Job) {
	p.mu.Lock()
	entry, ok := p.handlers[kind]
	p.mu.Unlock()
	if !ok {
		_ = p.queue.Fail(p.ctx, job.ID, "no handler registered for kind "+string(kind))
		return
	}

	if p.OnJobStart != nil {
		p.OnJobStart(kind)
	}
	if p.OnJobEnd != nil {
		defer p.OnJobEnd(kind)
	}

	if err := entry.fn(p.ctx, job); err != nil {
		if ferr := p.queue.Fail(p.ctx, job.ID, err.Error()); ferr != nil {
			logger.Warn("jobqueue: failed to record job failure", "job_id", job.ID, "error", ferr)
		}
		return
	}
	if err := p.queue.Complete(p.ctx, job.ID); err != nil {
		logger.Warn("jobqueue: failed to record job completion", "job_id", job.ID, "error", err)
	}
}
