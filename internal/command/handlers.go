package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/internal/editor"
	"github.com/thereceipt/certificate-engine/internal/ingest"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// handleTemplate handles template commands
// Usage: template list | show <id> | fields <id> | page-size <id> <size> [orientation]
func (e *Executor) handleTemplate(ctx context.Context, args []string) *Result {
	if len(args) == 0 {
		return failure("usage: template <list|show|fields|page-size>")
	}

	subcommand := args[0]

	switch subcommand {
	case "list":
		templates, err := e.templates.List(ctx)
		if err != nil {
			return failure("failed to list templates: %v", err)
		}
		list := make([]map[string]interface{}, len(templates))
		for i, t := range templates {
			list[i] = map[string]interface{}{
				"id":         t.ID,
				"name":       t.Name,
				"elements":   len(t.Elements),
				"fields":     certformat.BindingFields(t),
				"updated_at": t.UpdatedAt,
			}
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d template(s)", len(templates)),
			Data: map[string]interface{}{
				"templates": list,
			},
		}

	case "show", "fields":
		if len(args) < 2 {
			return failure("usage: template %s <id>", subcommand)
		}
		t, err := e.templates.Get(ctx, args[1])
		if err != nil {
			return failure("template not found: %s", args[1])
		}
		if subcommand == "fields" {
			fields := certformat.BindingFields(t)
			return &Result{
				Success: true,
				Message: strings.Join(fields, ", "),
				Data:    map[string]interface{}{"fields": fields},
			}
		}
		return &Result{
			Success: true,
			Data:    map[string]interface{}{"template": t},
		}

	case "page-size":
		if len(args) < 3 {
			return failure("usage: template page-size <id> <a4|a4-portrait|a4-landscape|letter> [portrait|landscape]")
		}
		t, err := e.templates.Get(ctx, args[1])
		if err != nil {
			return failure("template not found: %s", args[1])
		}
		var orientation certformat.Orientation
		if len(args) > 3 {
			orientation = certformat.Orientation(strings.ToLower(args[3]))
		}
		next, err := editor.SetPageSize(t, args[2], orientation)
		if err != nil {
			return failure("%v", err)
		}
		saved, err := e.templates.Update(ctx, next)
		if err != nil {
			return failure("failed to save template: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Template %s is now %.0fx%.0f %s", saved.ID, saved.Width, saved.Height, saved.Orientation),
			Data: map[string]interface{}{
				"width":       saved.Width,
				"height":      saved.Height,
				"orientation": saved.Orientation,
			},
		}

	default:
		return failure("unknown template subcommand: %s. Use: list, show, fields, page-size", subcommand)
	}
}

// handleGenerate queues a generation run
// Usage: generate <template-id> <data.csv|data.json|data.xlsx|url> [--format pdf|png]
func (e *Executor) handleGenerate(ctx context.Context, args []string) *Result {
	if len(args) < 2 {
		return failure("usage: generate <template-id> <data-path> [--format pdf|png]")
	}

	templateID := args[0]
	dataPath := args[1]

	format := batch.FormatPDF
	for i := 2; i < len(args); i++ {
		if args[i] == "--format" && i+1 < len(args) {
			format = batch.Format(strings.ToLower(args[i+1]))
			i++
		}
	}
	if !format.Valid() {
		return failure("unsupported format: %s", format)
	}

	t, err := e.templates.Get(ctx, templateID)
	if err != nil {
		return failure("template not found: %s", templateID)
	}

	table, err := e.loadTable(ctx, dataPath)
	if err != nil {
		return failure("failed to load data: %v", err)
	}

	runID, err := e.queue.Enqueue(t, table.Rows, format)
	if err != nil {
		if errors.Is(err, certformat.ErrNoData) {
			return failure("no data rows in %s", dataPath)
		}
		return failure("failed to queue run: %v", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Run queued: %s (%d rows)", runID, len(table.Rows)),
		Data: map[string]interface{}{
			"run_id":      runID,
			"template_id": templateID,
			"rows":        len(table.Rows),
			"format":      format,
		},
	}
}

// handleRun handles run commands
// Usage: run list | status <id> | cancel <id> | clear
func (e *Executor) handleRun(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: run <list|status|cancel|clear>")
	}

	subcommand := args[0]

	switch subcommand {
	case "list":
		runs := e.queue.ListRuns()
		list := make([]map[string]interface{}, len(runs))
		for i, run := range runs {
			list[i] = runData(run)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d run(s)", len(runs)),
			Data: map[string]interface{}{
				"runs": list,
			},
		}

	case "status":
		if len(args) < 2 {
			return failure("usage: run status <id>")
		}
		run, err := e.queue.GetRun(args[1])
		if err != nil {
			return failure("run not found: %s", args[1])
		}
		data := runData(run)
		if run.Report != nil {
			data["report"] = run.Report
		}
		return &Result{
			Success: true,
			Data:    data,
		}

	case "cancel":
		if len(args) < 2 {
			return failure("usage: run cancel <id>")
		}
		if err := e.queue.Cancel(args[1]); err != nil {
			if errors.Is(err, batch.ErrRunNotFound) {
				return failure("run not found: %s", args[1])
			}
			return failure("%v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cancelling run %s", args[1]),
		}

	case "clear":
		removed := e.queue.ClearFinished()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d finished run(s)", removed),
		}

	default:
		return failure("unknown run subcommand: %s. Use: list, status, cancel, clear", subcommand)
	}
}

func runData(run *batch.Run) map[string]interface{} {
	data := map[string]interface{}{
		"id":          run.ID,
		"template_id": run.TemplateID,
		"format":      run.Format,
		"status":      run.Status,
		"total_rows":  run.TotalRows,
		"created_at":  run.CreatedAt,
	}
	if run.Report != nil {
		data["succeeded"] = run.Report.Succeeded
		data["failed"] = run.Report.Failed
	}
	if run.Error != "" {
		data["error"] = run.Error
	}
	return data
}

// handleHistory lists generated certificates, newest first
// Usage: history [limit]
func (e *Executor) handleHistory(ctx context.Context, args []string) *Result {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return failure("invalid limit: %s", args[0])
		}
		limit = n
	}

	records, err := e.history.ListGenerations(ctx, limit)
	if err != nil {
		return failure("failed to list history: %v", err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Found %d certificate(s)", len(records)),
		Data: map[string]interface{}{
			"certificates": records,
		},
	}
}

// handleHelp handles help command
func (e *Executor) handleHelp(args []string) *Result {
	helpText := `Available Commands:

  template list
    List all templates

  template show <id>
    Show a template as JSON

  template fields <id>
    List the data fields a template binds

  template page-size <id> <size> [portrait|landscape]
    Resize the canvas to a4, a4-portrait, a4-landscape or letter

  generate <template-id> <data-path> [--format pdf|png]
    Queue one certificate per row of a CSV, JSON or XLSX file (or URL)

  run list
    List all generation runs

  run status <id>
    Get status and report of a run

  run cancel <id>
    Cancel a queued or running run

  run clear
    Clear finished runs from the queue

  history [limit]
    List generated certificates, newest first (default 20)

  help
    Show this help message

Examples:
  generate course-completion ./students.csv
  generate course-completion https://example.com/students.json --format png
  run status 5b1e0d2c-...
  history 50
`

	return &Result{
		Success: true,
		Message: helpText,
	}
}

// loadTable reads CSV, JSON or XLSX rows from a file path or URL. The
// format comes from the extension, or the response content type for URLs.
func (e *Executor) loadTable(ctx context.Context, pathOrURL string) (*ingest.Table, error) {
	format := ingest.FormatFor(pathOrURL, "")

	var r io.Reader
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := e.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch data from URL: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch data: HTTP %d", resp.StatusCode)
		}
		format = ingest.FormatFor(req.URL.Path, resp.Header.Get("Content-Type"))
		r = resp.Body
	} else {
		f, err := os.Open(pathOrURL)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
		defer f.Close()
		r = f
	}

	return ingest.Read(r, format)
}
