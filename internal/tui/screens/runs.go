package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/certificate-engine/internal/batch"
)

// RunsView shows generation runs and the report of the selected one
type RunsView struct {
	app     *tview.Application
	queue   *batch.Queue
	table   *tview.Table
	details *tview.TextView
	layout  *tview.Flex
	runs    []*batch.Run
}

// NewRunsView creates the runs screen
func NewRunsView(app *tview.Application, queue *batch.Queue) *RunsView {
	v := &RunsView{
		app:   app,
		queue: queue,
	}

	v.setupUI()
	return v
}

func (v *RunsView) setupUI() {
	v.table = tview.NewTable()
	v.table.SetBorder(true)
	v.table.SetTitle("Generation Runs")
	v.table.SetSelectable(true, false)
	v.table.SetSelectedFunc(func(row, column int) {
		v.selectRun(row)
	})

	v.details = tview.NewTextView()
	v.details.SetBorder(true)
	v.details.SetTitle("Run Details")
	v.details.SetDynamicColors(true)

	v.layout = tview.NewFlex().
		AddItem(v.table, 0, 2, true).
		AddItem(v.details, 0, 1, false)

	v.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				v.Refresh()
				return nil
			case 'c':
				row, _ := v.table.GetSelection()
				v.cancelRun(row)
				return nil
			case 'x':
				v.clearFinished()
				return nil
			}
		}
		return event
	})

	v.Refresh()
}

// Refresh reloads the run list from the queue
func (v *RunsView) Refresh() {
	v.table.Clear()

	headers := []string{"ID", "Template", "Status", "Rows", "Format", "Age"}
	for i, h := range headers {
		v.table.SetCell(0, i, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	v.runs = v.queue.ListRuns()
	for i, run := range v.runs {
		row := i + 1
		v.table.SetCell(row, 0, tview.NewTableCell(shortID(run.ID)))
		v.table.SetCell(row, 1, tview.NewTableCell(run.TemplateID))
		v.table.SetCell(row, 2, tview.NewTableCell(StatusIcon(run.Status)+" "+string(run.Status)))
		v.table.SetCell(row, 3, tview.NewTableCell(rowSummary(run)))
		v.table.SetCell(row, 4, tview.NewTableCell(string(run.Format)))
		v.table.SetCell(row, 5, tview.NewTableCell(time.Since(run.CreatedAt).Truncate(time.Second).String()))
	}

	if len(v.runs) == 0 {
		v.details.SetText("[yellow]No generation runs yet[white]")
	}
}

func (v *RunsView) selected(row int) *batch.Run {
	if row < 1 || row-1 >= len(v.runs) {
		return nil
	}
	return v.runs[row-1]
}

func (v *RunsView) selectRun(row int) {
	run := v.selected(row)
	if run == nil {
		return
	}
	// Pick up progress made since the list was drawn
	if fresh, err := v.queue.GetRun(run.ID); err == nil {
		run = fresh
	}

	var details strings.Builder
	fmt.Fprintf(&details, "[yellow]Run ID:[white] %s\n", run.ID)
	fmt.Fprintf(&details, "[yellow]Template:[white] %s\n", run.TemplateID)
	fmt.Fprintf(&details, "[yellow]Status:[white] %s %s\n", StatusIcon(run.Status), run.Status)
	fmt.Fprintf(&details, "[yellow]Format:[white] %s\n", run.Format)
	fmt.Fprintf(&details, "[yellow]Rows:[white] %d\n", run.TotalRows)
	fmt.Fprintf(&details, "[yellow]Created:[white] %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	if run.StartedAt != nil && run.FinishedAt != nil {
		fmt.Fprintf(&details, "[yellow]Duration:[white] %s\n", run.FinishedAt.Sub(*run.StartedAt).Truncate(time.Millisecond))
	}

	if r := run.Report; r != nil {
		fmt.Fprintf(&details, "\n[green]Succeeded:[white] %d  [red]Failed:[white] %d", r.Succeeded, r.Failed)
		if r.Skipped > 0 {
			fmt.Fprintf(&details, "  [yellow]Skipped:[white] %d", r.Skipped)
		}
		details.WriteString("\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&details, "[red]  row %d:[white] %s\n", f.RowIndex, tview.Escape(f.Reason))
		}
	}
	if run.Error != "" {
		fmt.Fprintf(&details, "\n[red]Error:[white] %s\n", tview.Escape(run.Error))
	}

	details.WriteString("\n[yellow]r refresh, c cancel, x clear finished[white]")
	v.details.SetText(details.String())
}

func (v *RunsView) cancelRun(row int) {
	run := v.selected(row)
	if run == nil {
		return
	}
	if err := v.queue.Cancel(run.ID); err != nil {
		v.details.SetText(fmt.Sprintf("[red]✗ %s[white]", tview.Escape(err.Error())))
		return
	}
	v.Refresh()
	v.details.SetText(fmt.Sprintf("[green]✓ Cancelled run %s[white]", run.ID))
}

func (v *RunsView) clearFinished() {
	removed := v.queue.ClearFinished()
	v.Refresh()
	v.details.SetText(fmt.Sprintf("[green]✓ Cleared %d finished run(s)[white]", removed))
}

// StatusIcon is the panel marker for a run status
func StatusIcon(status batch.Status) string {
	switch status {
	case batch.StatusQueued:
		return "⏳"
	case batch.StatusRunning:
		return "🟡"
	case batch.StatusCompleted:
		return "✅"
	case batch.StatusPartiallyFailed:
		return "⚠️"
	case batch.StatusFailed:
		return "❌"
	case batch.StatusCancelled:
		return "⛔"
	default:
		return "⚪"
	}
}

func rowSummary(run *batch.Run) string {
	if run.Report == nil {
		return fmt.Sprintf("%d", run.TotalRows)
	}
	return fmt.Sprintf("%d/%d", run.Report.Succeeded, run.TotalRows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// GetRoot returns the root primitive for this screen
func (v *RunsView) GetRoot() tview.Primitive {
	return v.layout
}
