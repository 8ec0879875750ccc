package workerpool

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []uuid.UUID
	done chan struct{}
}

func newRecordingRunner(expected int) *recordingRunner {
	return &recordingRunner{done: make(chan struct{}, expected)}
}

func (r *recordingRunner) Run(ctx context.Context, siteID, tenantID uuid.UUID, startURL string) {
	r.mu.Lock()
	r.runs = append(r.runs, siteID)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolRunsEnqueuedJob(t *testing.T) {
	runner := newRecordingRunner(1)
	pool := New(2, 4, runner, testLogger())
	pool.Start(context.Background(), 2)
	defer pool.Stop()

	siteID, tenantID := uuid.New(), uuid.New()
	if !pool.Enqueue(siteID, "https://example.com", tenantID) {
		t.Fatal("expected enqueue to succeed")
	}

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to run")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.runs) != 1 || runner.runs[0] != siteID {
		t.Errorf("expected job to run for site %s, got %v", siteID, runner.runs)
	}
}

func TestPoolEnqueueReturnsFalseWhenFull(t *testing.T) {
	runner := newRecordingRunner(0)
	pool := New(0, 1, runner, testLogger())
	// No Start call: queue fills without ever draining.

	tenantID := uuid.New()
	if !pool.Enqueue(uuid.New(), "https://example.com", tenantID) {
		t.Fatal("expected first enqueue to succeed")
	}
	if pool.Enqueue(uuid.New(), "https://example.com", tenantID) {
		t.Error("expected second enqueue to fail once queue is full")
	}
}
