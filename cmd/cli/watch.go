package main

import (
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/internal/tui"
)

type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wsRun struct {
	ID         string        `json:"id"`
	TemplateID string        `json:"template_id"`
	Status     batch.Status  `json:"status"`
	TotalRows  int           `json:"total_rows"`
	Report     *batch.Report `json:"report"`
	Error      string        `json:"error"`
}

type wsProgress struct {
	RunID     string       `json:"run_id"`
	Status    batch.Status `json:"status"`
	Done      int          `json:"done"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// decodeEvent converts a websocket frame into a watch event. Frames that
// carry no run information return ok=false.
func decodeEvent(data []byte) (tui.WatchEvent, bool, error) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return tui.WatchEvent{}, false, fmt.Errorf("invalid event: %w", err)
	}

	switch msg.Event {
	case "run_updated":
		var r wsRun
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			return tui.WatchEvent{}, false, fmt.Errorf("invalid run event: %w", err)
		}
		return tui.WatchEvent{Run: &batch.Run{
			ID:         r.ID,
			TemplateID: r.TemplateID,
			Status:     r.Status,
			TotalRows:  r.TotalRows,
			Report:     r.Report,
			Error:      r.Error,
		}}, true, nil
	case "progress":
		var p wsProgress
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return tui.WatchEvent{}, false, fmt.Errorf("invalid progress event: %w", err)
		}
		return tui.WatchEvent{Progress: &batch.Progress{
			RunID:     p.RunID,
			Status:    p.Status,
			Done:      p.Done,
			Total:     p.Total,
			Succeeded: p.Succeeded,
			Failed:    p.Failed,
		}}, true, nil
	}
	return tui.WatchEvent{}, false, nil
}

// watchRun follows a run until it finishes and returns its final status
func watchRun(c *client, runID string) (batch.Status, error) {
	endpoint, err := c.wsURL()
	if err != nil {
		return "", err
	}

	// Subscribe before reading the current state so no transition is missed
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	defer conn.Close()

	run, err := c.getRun(runID)
	if err != nil {
		return "", err
	}

	events := make(chan tui.WatchEvent, 16)
	events <- tui.WatchEvent{Run: run}

	if !run.Status.Terminal() {
		go func() {
			defer close(events)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						events <- tui.WatchEvent{Err: err}
					}
					return
				}
				ev, ok, err := decodeEvent(data)
				if err != nil || !ok {
					continue
				}
				events <- ev
			}
		}()
	}

	final, err := tea.NewProgram(tui.NewWatchModel(runID, events)).Run()
	if err != nil {
		return "", err
	}
	m := final.(tui.WatchModel)
	return m.Status(), m.Err()
}
