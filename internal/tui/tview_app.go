package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/internal/command"
	"github.com/thereceipt/certificate-engine/internal/store"
	"github.com/thereceipt/certificate-engine/internal/tui/screens"
)

const commandTimeout = 30 * time.Second

// TViewApp is the server dashboard
type TViewApp struct {
	App       *tview.Application
	executor  *command.Executor
	queue     *batch.Queue
	templates store.TemplateStore
	port      string

	flex *tview.Flex

	templatesList *tview.List
	runsTable     *tview.Table
	statusBox     *tview.TextView
	logsArea      *tview.TextView
	commandInput  *tview.InputField

	logsMu    sync.Mutex
	logs      []string
	maxLogs   int
	startTime time.Time

	currentScreen   string // "main", "templates", "runs"
	templatesScreen *screens.TemplatesView
	runsScreen      *screens.RunsView
}

// NewTViewApp creates the dashboard
func NewTViewApp(executor *command.Executor, queue *batch.Queue, templates store.TemplateStore, port string) *TViewApp {
	app := tview.NewApplication()

	t := &TViewApp{
		App:           app,
		executor:      executor,
		queue:         queue,
		templates:     templates,
		port:          port,
		logs:          make([]string, 0),
		maxLogs:       200,
		startTime:     time.Now(),
		currentScreen: "main",
	}

	t.setupUI()
	t.templatesScreen = screens.NewTemplatesView(app, templates)
	t.runsScreen = screens.NewRunsView(app, queue)
	return t
}

func (t *TViewApp) setupUI() {
	t.templatesList = tview.NewList()
	t.templatesList.SetBorder(true)
	t.templatesList.SetTitle("Templates")

	t.runsTable = tview.NewTable()
	t.runsTable.SetBorder(true)
	t.runsTable.SetTitle("Generation Runs")

	t.statusBox = tview.NewTextView()
	t.statusBox.SetBorder(true)
	t.statusBox.SetTitle("Server Status")
	t.statusBox.SetDynamicColors(true)

	t.logsArea = tview.NewTextView()
	t.logsArea.SetBorder(true)
	t.logsArea.SetTitle("Server Logs")
	t.logsArea.SetDynamicColors(true)
	t.logsArea.SetScrollable(true)
	t.logsArea.SetChangedFunc(func() {
		t.App.Draw()
	})

	t.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				t.executeCommand(t.commandInput.GetText())
				t.commandInput.SetText("")
			}
		})

	topRow := tview.NewFlex().
		AddItem(t.templatesList, 0, 1, false).
		AddItem(t.runsTable, 0, 2, false).
		AddItem(t.statusBox, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logsArea, 0, 3, false).
		AddItem(t.commandInput, 1, 0, true)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 1, false)

	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.currentScreen != "main" {
			if event.Key() == tcell.KeyEsc {
				t.showMainScreen()
				return nil
			}
			return event
		}

		// Shortcuts are disabled while typing a command
		if t.commandInput.HasFocus() {
			if event.Key() == tcell.KeyEsc {
				t.App.SetFocus(t.templatesList)
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			t.App.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ':':
				t.App.SetFocus(t.commandInput)
				return nil
			case 'q':
				t.App.Stop()
				return nil
			case 't':
				t.showScreen("templates")
				return nil
			case 'j':
				t.showScreen("runs")
				return nil
			}
		}
		return event
	})

	t.App.SetRoot(t.flex, true)
}

// Run starts the TUI and blocks until it exits
func (t *TViewApp) Run() error {
	t.refreshAll()
	go t.refreshTicker()

	t.AddLog("📜 Certificate Engine starting...", "info")

	return t.App.Run()
}

func (t *TViewApp) refreshTicker() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		t.App.QueueUpdateDraw(func() {
			t.refreshAll()
		})
	}
}

func (t *TViewApp) refreshAll() {
	t.refreshTemplates()
	t.refreshRuns()
	t.refreshStatus()
}

func (t *TViewApp) refreshTemplates() {
	t.templatesList.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	templates, err := t.templates.List(ctx)
	if err != nil {
		t.templatesList.AddItem("Error loading templates", err.Error(), 0, nil)
		return
	}
	if len(templates) == 0 {
		t.templatesList.AddItem("No templates stored", "", 0, nil)
		return
	}

	for _, tpl := range templates {
		t.templatesList.AddItem(screens.TemplateLabel(tpl), screens.TemplateSummary(tpl), 0, nil)
	}
}

func (t *TViewApp) refreshRuns() {
	t.runsTable.Clear()

	headers := []string{"Status", "Template", "Rows", "Time"}
	for i, h := range headers {
		t.runsTable.SetCell(0, i, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	runs := t.queue.ListRuns()
	counts := make(map[batch.Status]int)

	for i, run := range runs {
		row := i + 1
		t.runsTable.SetCell(row, 0, tview.NewTableCell(screens.StatusIcon(run.Status)+" "+string(run.Status)))
		t.runsTable.SetCell(row, 1, tview.NewTableCell(run.TemplateID))

		rows := fmt.Sprintf("%d", run.TotalRows)
		if run.Report != nil {
			rows = fmt.Sprintf("%d ok / %d failed", run.Report.Succeeded, run.Report.Failed)
		}
		t.runsTable.SetCell(row, 2, tview.NewTableCell(rows))
		t.runsTable.SetCell(row, 3, tview.NewTableCell(time.Since(run.CreatedAt).Truncate(time.Second).String()))

		counts[run.Status]++
	}

	if len(runs) > 0 {
		summaryRow := len(runs) + 1
		summary := fmt.Sprintf("[%d] Queued [%d] Running [%d] Completed [%d] Partial [%d] Failed",
			counts[batch.StatusQueued], counts[batch.StatusRunning], counts[batch.StatusCompleted],
			counts[batch.StatusPartiallyFailed], counts[batch.StatusFailed])
		t.runsTable.SetCell(summaryRow, 0, tview.NewTableCell(summary).SetSelectable(false))
	}
}

func (t *TViewApp) refreshStatus() {
	uptime := time.Since(t.startTime)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	status := fmt.Sprintf(`[green]🟢 Running[white]

Uptime: %dh %dm
API: :%s
Runs: %d total`, hours, minutes, t.port, len(t.queue.ListRuns()))

	t.statusBox.SetText(status)
}

func (t *TViewApp) executeCommand(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}

	t.AddLog(fmt.Sprintf("> %s", cmd), "command")

	switch strings.ToLower(strings.Fields(cmd)[0]) {
	case "templates", "t":
		t.showScreen("templates")
		return
	case "runs", "j":
		t.showScreen("runs")
		return
	case "clear":
		t.logsMu.Lock()
		t.logs = make([]string, 0)
		t.logsMu.Unlock()
		t.logsArea.Clear()
		return
	case "refresh":
		t.AddLog("Refreshing all panels...", "info")
		t.refreshAll()
		return
	case "quit", "q":
		t.App.Stop()
		return
	case "help", "h", "?":
		t.showHelp()
	}

	// Everything else goes to the shared command executor off the UI goroutine
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		result := t.executor.Execute(ctx, cmd)
		t.App.QueueUpdateDraw(func() {
			if result.Success {
				t.AddLog(result.Message, "info")
			} else {
				t.AddLog(result.Error, "error")
			}
			t.refreshRuns()
		})
	}()
}

func (t *TViewApp) showHelp() {
	help := []string{
		"Dashboard commands:",
		"  templates, t         - Open template browser",
		"  runs, j              - Open run monitor",
		"  clear                - Clear logs",
		"  refresh              - Refresh all panels",
		"  quit, q              - Exit application",
		"",
		"Keyboard shortcuts:",
		"  :   - Focus command input",
		"  t   - Template browser",
		"  j   - Run monitor",
		"  Esc - Back to main",
	}
	t.AddLog(strings.Join(help, "\n"), "info")
}

func (t *TViewApp) showScreen(screenName string) {
	t.currentScreen = screenName

	switch screenName {
	case "templates":
		t.templatesScreen.Refresh()
		t.App.SetRoot(t.templatesScreen.GetRoot(), true)
		t.App.SetFocus(t.templatesScreen.GetRoot())
	case "runs":
		t.runsScreen.Refresh()
		t.App.SetRoot(t.runsScreen.GetRoot(), true)
		t.App.SetFocus(t.runsScreen.GetRoot())
	default:
		t.showMainScreen()
	}
}

func (t *TViewApp) showMainScreen() {
	t.currentScreen = "main"
	t.App.SetRoot(t.flex, true)
	t.App.SetFocus(t.templatesList)
}

// AddLog appends a line to the logs panel
func (t *TViewApp) AddLog(message string, level string) {
	var color, icon string

	switch level {
	case "error":
		color = "[red]"
		icon = "❌"
	case "warning":
		color = "[yellow]"
		icon = "⚠️"
	case "command":
		color = "[cyan]"
		icon = ">"
	default:
		color = "[white]"
		icon = "ℹ️"
	}

	entry := fmt.Sprintf("%s[%s] %s %s[white]\n", color, time.Now().Format("15:04:05"), icon, tview.Escape(message))

	t.logsMu.Lock()
	t.logs = append(t.logs, entry)
	if len(t.logs) > t.maxLogs {
		t.logs = t.logs[len(t.logs)-t.maxLogs:]
	}
	lines := strings.Join(t.logs, "")
	t.logsMu.Unlock()

	t.logsArea.SetText(lines)
	t.logsArea.ScrollToEnd()
}

// LogWriter returns an io.Writer feeding the logs panel. It is meant to be
// the sink of a slog text handler, so the level is taken from the record.
func (t *TViewApp) LogWriter() io.Writer {
	return &tviewLogWriter{app: t}
}

type tviewLogWriter struct {
	app *TViewApp
}

func (w *tviewLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if message != "" {
		w.app.AddLog(message, logLevel(message))
	}
	return len(p), nil
}

// logLevel maps a slog text record to an AddLog level
func logLevel(line string) string {
	switch {
	case strings.Contains(line, "level=ERROR"):
		return "error"
	case strings.Contains(line, "level=WARN"):
		return "warning"
	default:
		return "info"
	}
}
