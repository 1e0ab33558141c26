package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thereceipt/certificate-engine/internal/binding"
)

func waitForStatus(t *testing.T, q *Queue, runID string, want Status) *Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := q.GetRun(runID)
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if run.Status == want {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	run, _ := q.GetRun(runID)
	t.Fatalf("Timed out waiting for %s, run is %s", want, run.Status)
	return nil
}

// blockingRenderer holds the first render until release is closed
type blockingRenderer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingRenderer() *blockingRenderer {
	return &blockingRenderer{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingRenderer) Render(ctx context.Context, req Request) (string, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return "ok", nil
}

func TestQueue_RunsToCompletion(t *testing.T) {
	q := NewQueue(NewGenerator(&fakeRenderer{}))
	defer q.Stop()

	id, err := q.Enqueue(testTemplate(t), fiveRows(), FormatPDF)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	run := waitForStatus(t, q, id, StatusPartiallyFailed)
	if run.Report == nil || run.Report.Succeeded != 4 {
		t.Errorf("Expected report with 4 successes, got %+v", run.Report)
	}
	if run.StartedAt == nil || run.FinishedAt == nil {
		t.Error("Expected start and finish times")
	}
}

func TestQueue_RejectsEmptyData(t *testing.T) {
	q := NewQueue(NewGenerator(&fakeRenderer{}))
	defer q.Stop()

	_, err := q.Enqueue(testTemplate(t), []binding.Row{}, FormatPDF)
	if err == nil {
		t.Error("Expected error for empty data")
	}
	if len(q.ListRuns()) != 0 {
		t.Error("Expected no run to be created")
	}
}

func TestQueue_CancelQueuedAndRunning(t *testing.T) {
	renderer := newBlockingRenderer()
	var mu sync.Mutex
	updates := 0
	q := NewQueue(NewGenerator(renderer), WithUpdates(func(Run) {
		mu.Lock()
		updates++
		mu.Unlock()
	}))
	defer q.Stop()

	first, _ := q.Enqueue(testTemplate(t), fiveRows(), FormatPNG)
	second, _ := q.Enqueue(testTemplate(t), fiveRows(), FormatPNG)

	<-renderer.started

	if err := q.Cancel(second); err != nil {
		t.Fatalf("Cancel queued failed: %v", err)
	}
	waitForStatus(t, q, second, StatusCancelled)

	if err := q.Cancel(first); err != nil {
		t.Fatalf("Cancel running failed: %v", err)
	}
	close(renderer.release)

	run := waitForStatus(t, q, first, StatusCancelled)
	if run.Report == nil || run.Report.Succeeded != 1 || run.Report.Skipped != 4 {
		t.Errorf("Expected 1 finished and 4 skipped rows, got %+v", run.Report)
	}

	if err := q.Cancel(first); err == nil {
		t.Error("Expected error cancelling a finished run")
	}

	mu.Lock()
	defer mu.Unlock()
	if updates < 4 {
		t.Errorf("Expected state change notifications, got %d", updates)
	}
}

func TestQueue_UnknownRun(t *testing.T) {
	q := NewQueue(NewGenerator(&fakeRenderer{}))
	defer q.Stop()

	if _, err := q.GetRun("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
	if err := q.Cancel("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestQueue_ClearFinished(t *testing.T) {
	q := NewQueue(NewGenerator(&fakeRenderer{}))
	defer q.Stop()

	id, _ := q.Enqueue(testTemplate(t), fiveRows(), FormatPNG)
	waitForStatus(t, q, id, StatusPartiallyFailed)

	if removed := q.ClearFinished(); removed != 1 {
		t.Errorf("Expected 1 run removed, got %d", removed)
	}
	if len(q.ListRuns()) != 0 {
		t.Error("Expected empty run list")
	}
}
