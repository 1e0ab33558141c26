package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/thereceipt/certificate-engine/internal/batch"
)

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestWatchModel_Progress(t *testing.T) {
	events := make(chan WatchEvent, 1)
	m := NewWatchModel("run-1", events)

	updated, cmd := m.Update(WatchEvent{Progress: &batch.Progress{
		RunID: "run-1", Status: batch.StatusRunning, Done: 2, Total: 4, Succeeded: 1, Failed: 1,
	}})
	m = updated.(WatchModel)

	if m.Percent() != 0.5 {
		t.Errorf("Expected 50%% done, got %v", m.Percent())
	}
	if m.Status() != batch.StatusRunning {
		t.Errorf("Expected running, got %s", m.Status())
	}
	if cmd == nil {
		t.Fatal("Expected a command waiting for the next event")
	}

	view := m.View()
	for _, want := range []string{"run-1", "2/4 rows", "1 ok", "1 failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestWatchModel_IgnoresOtherRuns(t *testing.T) {
	m := NewWatchModel("run-1", make(chan WatchEvent))

	updated, _ := m.Update(WatchEvent{Progress: &batch.Progress{RunID: "run-2", Done: 3, Total: 3}})
	m = updated.(WatchModel)

	if m.Percent() != 0 {
		t.Errorf("Expected no progress from another run, got %v", m.Percent())
	}
}

func TestWatchModel_QuitsOnTerminalRun(t *testing.T) {
	m := NewWatchModel("run-1", make(chan WatchEvent))

	run := &batch.Run{
		ID:         "run-1",
		TemplateID: "course",
		Status:     batch.StatusPartiallyFailed,
		TotalRows:  3,
		Report: &batch.Report{
			TotalRows: 3,
			Succeeded: 2,
			Failed:    1,
			Failures:  []batch.Failure{{RowIndex: 1, Reason: "render failed"}},
		},
	}

	updated, cmd := m.Update(WatchEvent{Run: run})
	m = updated.(WatchModel)

	if !isQuit(cmd) {
		t.Error("Expected quit after a terminal status")
	}
	if m.Report() == nil || m.Report().Succeeded != 2 {
		t.Errorf("Expected final report, got %+v", m.Report())
	}
	if m.Percent() != 1 {
		t.Errorf("Expected 100%% done, got %v", m.Percent())
	}

	view := m.View()
	if !strings.Contains(view, "row 1: render failed") {
		t.Errorf("Expected failure listed, got:\n%s", view)
	}
	if strings.Contains(view, "stop watching") {
		t.Error("Expected no key hint once finished")
	}
}

func TestWatchModel_TerminalProgressWaitsForRun(t *testing.T) {
	events := make(chan WatchEvent)
	close(events)
	m := NewWatchModel("run-1", events)

	updated, cmd := m.Update(WatchEvent{Progress: &batch.Progress{
		RunID: "run-1", Status: batch.StatusCompleted, Done: 1, Total: 1, Succeeded: 1,
	}})
	m = updated.(WatchModel)

	if isQuit(cmd) {
		t.Error("Expected to keep waiting for the run update")
	}
	if m.Status().Terminal() {
		t.Errorf("Expected non-terminal status, got %s", m.Status())
	}
}

func TestWatchModel_TransportError(t *testing.T) {
	m := NewWatchModel("run-1", make(chan WatchEvent))

	updated, cmd := m.Update(WatchEvent{Err: errors.New("connection refused")})
	m = updated.(WatchModel)

	if !isQuit(cmd) {
		t.Error("Expected quit on transport error")
	}
	if m.Err() == nil {
		t.Error("Expected error to be kept")
	}
}

func TestWatchModel_ClosedChannel(t *testing.T) {
	events := make(chan WatchEvent)
	close(events)
	m := NewWatchModel("run-1", events)

	msg := m.next()()
	if _, ok := msg.(watchClosedMsg); !ok {
		t.Fatalf("Expected closed message, got %T", msg)
	}

	updated, cmd := m.Update(msg)
	m = updated.(WatchModel)
	if !isQuit(cmd) {
		t.Error("Expected quit when the event stream ends")
	}
	if m.Err() == nil {
		t.Error("Expected error for a stream closed mid-run")
	}
}

func TestWatchModel_QuitKey(t *testing.T) {
	m := NewWatchModel("run-1", make(chan WatchEvent))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !isQuit(cmd) {
		t.Error("Expected quit on q")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"certificate", 8, "certi..."},
		{"abcdef", 2, "ab"},
		{"Zoë Müller", 6, "Zoë..."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{`time=x level=INFO msg="run finished"`, "info"},
		{`time=x level=WARN msg="row render failed"`, "warning"},
		{`time=x level=ERROR msg="request failed"`, "error"},
	}

	for _, tt := range tests {
		if got := logLevel(tt.line); got != tt.want {
			t.Errorf("logLevel(%q) = %s, want %s", tt.line, got, tt.want)
		}
	}
}
