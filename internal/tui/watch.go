package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/thereceipt/certificate-engine/internal/batch"
)

// WatchEvent is one update about the watched run. Exactly one of Run,
// Progress and Err is set.
type WatchEvent struct {
	Run      *batch.Run
	Progress *batch.Progress
	Err      error
}

type watchClosedMsg struct{}

// WatchModel follows a single generation run until it finishes
type WatchModel struct {
	runID  string
	events <-chan WatchEvent

	spinner spinner.Model
	bar     progress.Model

	templateID string
	status     batch.Status
	done       int
	total      int
	succeeded  int
	failed     int
	report     *batch.Report
	runErr     string
	err        error
	quitting   bool
}

// NewWatchModel creates a model fed by events
func NewWatchModel(runID string, events <-chan WatchEvent) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return WatchModel{
		runID:   runID,
		events:  events,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		status:  batch.StatusQueued,
	}
}

// Init starts the spinner and the event pump
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m WatchModel) next() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return watchClosedMsg{}
		}
		return ev
	}
}

// Update handles messages
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		width := msg.Width - 8
		if width > 60 {
			width = 60
		}
		if width > 10 {
			m.bar.Width = width
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case watchClosedMsg:
		if !m.status.Terminal() && m.err == nil {
			m.err = fmt.Errorf("connection closed before run %s finished", m.runID)
		}
		return m, tea.Quit

	case WatchEvent:
		m.apply(msg)
		if m.err != nil || m.status.Terminal() {
			return m, tea.Quit
		}
		return m, m.next()
	}

	return m, nil
}

func (m *WatchModel) apply(ev WatchEvent) {
	switch {
	case ev.Err != nil:
		m.err = ev.Err
	case ev.Run != nil:
		if ev.Run.ID != m.runID {
			return
		}
		m.templateID = ev.Run.TemplateID
		m.status = ev.Run.Status
		m.runErr = ev.Run.Error
		if m.total == 0 {
			m.total = ev.Run.TotalRows
		}
		if r := ev.Run.Report; r != nil {
			m.report = r
			m.total = r.TotalRows
			m.succeeded = r.Succeeded
			m.failed = r.Failed
			m.done = r.Succeeded + r.Failed
		}
	case ev.Progress != nil:
		p := ev.Progress
		if p.RunID != m.runID {
			return
		}
		// Terminal state is taken from run updates, which carry the report
		if !p.Status.Terminal() {
			m.status = p.Status
		}
		m.done, m.total = p.Done, p.Total
		m.succeeded, m.failed = p.Succeeded, p.Failed
	}
}

// Percent is the share of rows processed so far
func (m WatchModel) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// Status is the last status seen for the run
func (m WatchModel) Status() batch.Status {
	return m.status
}

// Report is the final report, once the run has finished
func (m WatchModel) Report() *batch.Report {
	return m.report
}

// Err is set when the watch ended because of a transport failure
func (m WatchModel) Err() error {
	return m.err
}

// View renders the model
func (m WatchModel) View() string {
	var b strings.Builder

	title := "Run " + m.runID
	if m.templateID != "" {
		title += " • " + m.templateID
	}
	b.WriteString(HeaderStyle.Render(title))
	b.WriteString("\n")

	if m.status.Terminal() {
		b.WriteString(StatusIcon(m.status) + " " + StatusStyle(m.status).Render(string(m.status)))
	} else {
		b.WriteString(m.spinner.View() + " " + TextNormal.Render(string(m.status)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.Percent()))
	fmt.Fprintf(&b, "\n%s  %s  %s\n",
		TextMuted.Render(fmt.Sprintf("%d/%d rows", m.done, m.total)),
		SuccessStyle.Render(fmt.Sprintf("%d ok", m.succeeded)),
		ErrorStyle.Render(fmt.Sprintf("%d failed", m.failed)))

	if m.report != nil {
		if m.report.Skipped > 0 {
			b.WriteString(WarningStyle.Render(fmt.Sprintf("%d skipped", m.report.Skipped)) + "\n")
		}
		for _, f := range m.report.Failures {
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("  row %d: %s", f.RowIndex, Truncate(f.Reason, 100))) + "\n")
		}
	}
	if m.runErr != "" && m.status == batch.StatusFailed {
		b.WriteString(ErrorStyle.Render("Error: "+m.runErr) + "\n")
	}
	if m.err != nil {
		b.WriteString(ErrorStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	if !m.status.Terminal() && !m.quitting && m.err == nil {
		b.WriteString("\n" + RenderHelp("q", "stop watching") + "\n")
	}
	return b.String()
}
