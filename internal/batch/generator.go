// Package batch drives certificate generation over a set of data rows
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
	"github.com/thereceipt/certificate-engine/internal/store"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// Format of the generated artefact
type Format string

const (
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

// Valid reports whether f is a supported output format
func (f Format) Valid() bool {
	return f == FormatPDF || f == FormatPNG
}

// Request is one certificate to render. Template is already resolved and
// all geometry is in document space.
type Request struct {
	RunID    string
	RowIndex int
	Serial   string
	Template *certformat.Template
	Format   Format
}

// Renderer produces the artefact for a resolved template and returns a
// reference to it (URL or path)
type Renderer interface {
	Render(ctx context.Context, req Request) (string, error)
}

// RenderFunc adapts a function to Renderer
type RenderFunc func(ctx context.Context, req Request) (string, error)

// Render implements Renderer
func (f RenderFunc) Render(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Generator resolves and renders a template once per data row
type Generator struct {
	renderer Renderer
	history  store.HistoryStore
	metrics  *Metrics
	logger   *slog.Logger
	workers  int
	progress func(Progress)
	serials  certformat.IDGenerator

	mu     sync.Mutex
	status Status
}

// Option configures a Generator
type Option func(*Generator)

// WithHistory records one GenerationRecord per row
func WithHistory(h store.HistoryStore) Option {
	return func(g *Generator) { g.history = h }
}

// WithMetrics reports row and run counts to Prometheus
func WithMetrics(m *Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithWorkers renders up to n rows concurrently. Default 1.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithProgress registers a callback invoked after every row. Calls are
// serialized in completion order and must not block.
func WithProgress(fn func(Progress)) Option {
	return func(g *Generator) { g.progress = fn }
}

// WithSerials overrides the per-certificate serial generator
func WithSerials(ids certformat.IDGenerator) Option {
	return func(g *Generator) { g.serials = ids }
}

// NewGenerator creates a Generator around renderer
func NewGenerator(renderer Renderer, opts ...Option) *Generator {
	g := &Generator{
		renderer: renderer,
		logger:   slog.Default(),
		workers:  1,
		serials:  certformat.UUIDGenerator(),
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Status returns the state of the most recent run
func (g *Generator) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Generator) setStatus(s Status) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

// Run generates one certificate per row under a fresh run id
func (g *Generator) Run(ctx context.Context, t *certformat.Template, rows []binding.Row, format Format) (*Report, error) {
	return g.RunWithID(ctx, uuid.New().String(), t, rows, format)
}

// RunWithID generates one certificate per row. Row failures are collected
// in the report and never abort the run. Cancelling ctx stops new rows from
// starting; rows already rendering finish. A cancelled run returns its
// partial report together with the context error.
func (g *Generator) RunWithID(ctx context.Context, runID string, t *certformat.Template, rows []binding.Row, format Format) (*Report, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, certformat.ErrNoData)
	}
	if format == "" {
		format = FormatPDF
	}
	if !format.Valid() {
		return nil, fmt.Errorf("run %s: unsupported format %q", runID, format)
	}

	g.setStatus(StatusRunning)
	if g.metrics != nil {
		g.metrics.runsInProgress.Inc()
		defer g.metrics.runsInProgress.Dec()
	}

	logger := g.logger.With("run", runID, "template", t.ID)
	logger.Info("generation started", "rows", len(rows), "format", format, "workers", g.workers)

	report := &Report{
		RunID:      runID,
		TemplateID: t.ID,
		Format:     format,
		TotalRows:  len(rows),
		StartedAt:  time.Now().UTC(),
	}

	outcomes := make([]outcome, len(rows))
	var (
		mu                     sync.Mutex
		done, succeeded, fails int
	)
	record := func(i int, o outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[i] = o
		done++
		if o.err != nil {
			fails++
		} else {
			succeeded++
		}
		// Delivered under the lock so Done never goes backwards
		if g.progress != nil {
			g.progress(Progress{RunID: runID, Status: StatusRunning, Done: done, Total: len(rows), Succeeded: succeeded, Failed: fails})
		}
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < g.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Rows handed over after cancellation are left unprocessed
				if ctx.Err() != nil {
					continue
				}
				record(i, g.processRow(ctx, logger, runID, t, i, rows[i], format))
			}
		}()
	}

	cancelled := false
dispatch:
	for i := range rows {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = true
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if !cancelled && ctx.Err() != nil {
		for _, o := range outcomes {
			if !o.done {
				cancelled = true
				break
			}
		}
	}

	buildReport(report, outcomes, cancelled)
	report.FinishedAt = time.Now().UTC()
	g.setStatus(report.Status)

	if g.metrics != nil {
		g.metrics.runsTotal.WithLabelValues(string(report.Status)).Inc()
	}
	if g.progress != nil {
		g.progress(Progress{RunID: runID, Status: report.Status, Done: report.Succeeded + report.Failed, Total: report.TotalRows, Succeeded: report.Succeeded, Failed: report.Failed})
	}

	logger.Info("generation finished",
		"status", report.Status,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.FinishedAt.Sub(report.StartedAt))

	if cancelled {
		return report, fmt.Errorf("run %s cancelled: %w", runID, ctx.Err())
	}
	return report, nil
}

func (g *Generator) processRow(ctx context.Context, logger *slog.Logger, runID string, t *certformat.Template, i int, row binding.Row, format Format) outcome {
	serial := g.serials()

	resolved, err := binding.Resolve(t, row)
	if err != nil {
		err = fmt.Errorf("row %d: %w", i, err)
		logger.Warn("row resolution failed", "row", i, "error", err)
		g.countRow("resolution_failed")
		g.recordHistory(ctx, logger, runID, t.ID, i, serial, row, "", err)
		return outcome{done: true, serial: serial, err: err}
	}

	// In-flight renders are allowed to finish after cancellation
	start := time.Now()
	url, err := g.renderer.Render(context.WithoutCancel(ctx), Request{
		RunID:    runID,
		RowIndex: i,
		Serial:   serial,
		Template: resolved,
		Format:   format,
	})
	if g.metrics != nil {
		g.metrics.renderDuration.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if !errors.Is(err, certformat.ErrRender) {
			err = fmt.Errorf("%v: %w", err, certformat.ErrRender)
		}
		err = fmt.Errorf("row %d: %w", i, err)
		logger.Warn("row render failed", "row", i, "error", err)
		g.countRow("render_failed")
		g.recordHistory(ctx, logger, runID, t.ID, i, serial, row, "", err)
		return outcome{done: true, serial: serial, err: err}
	}

	g.countRow("succeeded")
	g.recordHistory(ctx, logger, runID, t.ID, i, serial, row, url, nil)
	return outcome{done: true, serial: serial, url: url}
}

func (g *Generator) countRow(result string) {
	if g.metrics != nil {
		g.metrics.rowsTotal.WithLabelValues(result).Inc()
	}
}

func (g *Generator) recordHistory(ctx context.Context, logger *slog.Logger, runID, templateID string, i int, serial string, row binding.Row, url string, rowErr error) {
	if g.history == nil {
		return
	}

	rec := &store.GenerationRecord{
		ID:            serial,
		RunID:         runID,
		TemplateID:    templateID,
		RowIndex:      i,
		RecipientName: RecipientName(row),
		Status:        store.StatusCompleted,
		FileURL:       url,
		Metadata:      scalarMetadata(row),
	}
	if rowErr != nil {
		rec.Status = store.StatusFailed
		rec.Error = rowErr.Error()
	}

	if _, err := g.history.CreateGeneration(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("failed to record generation", "row", i, "error", err)
	}
}

// RecipientName picks the display name for a history record
func RecipientName(row binding.Row) string {
	for _, key := range []string{"name", "Name"} {
		if v, ok := row[key]; ok && !binding.IsNull(v) {
			if s, err := binding.Display(v); err == nil && s != "" {
				return s
			}
		}
	}
	return "Unknown"
}

// scalarMetadata keeps the displayable subset of a row
func scalarMetadata(row binding.Row) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		if binding.IsNull(v) {
			continue
		}
		if s, err := binding.Display(v); err == nil {
			out[k] = s
		}
	}
	return out
}
