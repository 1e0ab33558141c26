package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereceipt/certificate-engine/internal/binding"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// ErrRunNotFound is returned for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// Run is a queued or executed generation request
type Run struct {
	ID         string               `json:"id"`
	TemplateID string               `json:"templateId"`
	Format     Format               `json:"format"`
	TotalRows  int                  `json:"totalRows"`
	Status     Status               `json:"status"`
	Report     *Report              `json:"report,omitempty"`
	Error      string               `json:"error,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	StartedAt  *time.Time           `json:"startedAt,omitempty"`
	FinishedAt *time.Time           `json:"finishedAt,omitempty"`

	template *certformat.Template
	rows     []binding.Row
	cancel   context.CancelFunc
}

// Queue executes generation runs one at a time on a background worker
type Queue struct {
	runs      []*Run
	mu        sync.Mutex
	generator *Generator
	logger    *slog.Logger
	onUpdate  func(Run)
	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// QueueOption configures a Queue
type QueueOption func(*Queue)

// WithQueueLogger sets the structured logger
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

// WithUpdates registers a callback invoked on every run state change
func WithUpdates(fn func(Run)) QueueOption {
	return func(q *Queue) { q.onUpdate = fn }
}

// NewQueue creates a queue and starts its worker
func NewQueue(g *Generator, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		runs:      make([]*Run, 0),
		generator: g,
		logger:    slog.Default(),
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// Enqueue schedules a run and returns its id. Empty data is rejected up
// front so no run is created for it.
func (q *Queue) Enqueue(t *certformat.Template, rows []binding.Row, format Format) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("enqueue: %w", certformat.ErrNoData)
	}
	if format == "" {
		format = FormatPDF
	}
	if !format.Valid() {
		return "", fmt.Errorf("enqueue: unsupported format %q", format)
	}

	run := &Run{
		ID:         uuid.New().String(),
		TemplateID: t.ID,
		Format:     format,
		TotalRows:  len(rows),
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
		template:   t.Clone(),
		rows:       rows,
	}

	q.mu.Lock()
	q.runs = append(q.runs, run)
	snapshot := *run
	q.mu.Unlock()

	q.notify(snapshot)
	select {
	case q.wake <- struct{}{}:
	default:
	}

	return run.ID, nil
}

// worker processes queued runs
func (q *Queue) worker() {
	defer q.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
			for q.processNextRun() {
			}
		case <-ticker.C:
			for q.processNextRun() {
			}
		}
	}
}

// processNextRun executes the oldest queued run and reports whether one
// was found
func (q *Queue) processNextRun() bool {
	if q.ctx.Err() != nil {
		return false
	}

	q.mu.Lock()

	var run *Run
	for _, r := range q.runs {
		if r.Status == StatusQueued {
			run = r
			break
		}
	}
	if run == nil {
		q.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(q.ctx)
	now := time.Now().UTC()
	run.Status = StatusRunning
	run.StartedAt = &now
	run.cancel = cancel
	snapshot := *run

	q.mu.Unlock()
	q.notify(snapshot)

	report, err := q.generator.RunWithID(ctx, run.ID, run.template, run.rows, run.Format)
	cancel()

	q.mu.Lock()
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Report = report
	run.cancel = nil
	run.rows = nil
	switch {
	case report != nil:
		run.Status = report.Status
	case err != nil:
		run.Status = StatusFailed
	}
	if err != nil {
		run.Error = err.Error()
	}
	snapshot = *run
	q.mu.Unlock()

	q.notify(snapshot)
	q.logger.Info("run finished", "run", run.ID, "status", snapshot.Status)
	return true
}

// Cancel stops a queued or running run
func (q *Queue) Cancel(runID string) error {
	q.mu.Lock()

	for _, run := range q.runs {
		if run.ID != runID {
			continue
		}
		switch {
		case run.Status == StatusQueued:
			now := time.Now().UTC()
			run.Status = StatusCancelled
			run.FinishedAt = &now
			run.rows = nil
			snapshot := *run
			q.mu.Unlock()
			q.notify(snapshot)
			return nil
		case run.Status == StatusRunning && run.cancel != nil:
			run.cancel()
			q.mu.Unlock()
			return nil
		default:
			status := run.Status
			q.mu.Unlock()
			return fmt.Errorf("run %s is already %s", runID, status)
		}
	}

	q.mu.Unlock()
	return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
}

// GetRun returns a copy of a run
func (q *Queue) GetRun(runID string) (*Run, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, run := range q.runs {
		if run.ID == runID {
			runCopy := *run
			return &runCopy, nil
		}
	}
	return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
}

// ListRuns returns copies of all runs in submission order
func (q *Queue) ListRuns() []*Run {
	q.mu.Lock()
	defer q.mu.Unlock()

	runs := make([]*Run, len(q.runs))
	for i, run := range q.runs {
		runCopy := *run
		runs[i] = &runCopy
	}
	return runs
}

// ClearFinished removes runs in a terminal state and returns how many
func (q *Queue) ClearFinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	filtered := make([]*Run, 0, len(q.runs))
	for _, run := range q.runs {
		if !run.Status.Terminal() {
			filtered = append(filtered, run)
		}
	}
	removed := len(q.runs) - len(filtered)
	q.runs = filtered
	return removed
}

// Stop cancels any running run and stops the worker
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) notify(run Run) {
	if q.onUpdate != nil {
		q.onUpdate(run)
	}
}
