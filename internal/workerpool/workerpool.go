// Package workerpool runs audit tasks on a bounded goroutine pool, separate
// from the HTTP request-handling path, so a queueing call returns as soon
// as the job is accepted (spec §5, §4.G).
package workerpool

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// job is one (site, url, tenant) audit task waiting to run.
type job struct {
	siteID   uuid.UUID
	url      string
	tenantID uuid.UUID
}

// Runner executes a single queued audit task. pkg/audit.Orchestrator.Run
// satisfies this signature.
type Runner interface {
	Run(ctx context.Context, siteID, tenantID uuid.UUID, startURL string)
}

// Pool is a fixed-size goroutine pool reading audit jobs from a buffered
// channel, grounded on the teacher's periodic-sweep background task shape
// (pkg/roster/worker.go) generalized to an on-demand queue.
type Pool struct {
	jobs   chan job
	runner Runner
	logger *slog.Logger
	cancel context.CancelFunc
}

// New creates a Pool with the given queue depth; when queueDepth <= 0 the
// depth defaults to size*4. The number of workers is the count passed to
// Start. Call Start to begin processing and Stop to signal workers to exit.
func New(size, queueDepth int, runner Runner, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueDepth <= 0 {
		queueDepth = size * 4
	}
	return &Pool{
		jobs:   make(chan job, queueDepth),
		runner: runner,
		logger: logger,
	}
}

// Start launches size worker goroutines that run until ctx is cancelled or
// Stop is called.
func (p *Pool) Start(ctx context.Context, size int) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < size; i++ {
		go p.worker(ctx, i)
	}
}

// Stop signals every worker goroutine to exit once its current job (if any)
// finishes. It does not drain pending jobs.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.runner.Run(ctx, j.siteID, j.tenantID, j.url)
		}
	}
}

// Enqueue submits an audit job without blocking. It returns false if the
// queue is full, satisfying pkg/site.AuditDispatcher.
func (p *Pool) Enqueue(siteID uuid.UUID, url string, tenantID uuid.UUID) bool {
	select {
	case p.jobs <- job{siteID: siteID, url: url, tenantID: tenantID}:
		return true
	default:
		p.logger.Warn("audit queue full, dropping job", "site_id", siteID)
		return false
	}
}
