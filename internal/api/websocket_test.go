package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/internal/binding"
)

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for env.server.Hub().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, event string) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed waiting for %s: %v", event, err)
		}
		if msg.Event == event {
			return msg
		}
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	conn.WriteJSON(WSMessage{Event: EventPing})
	readEvent(t, conn, EventPong)

	conn.WriteJSON(WSMessage{Event: "print"})
	msg := readEvent(t, conn, EventError)
	if !strings.Contains(msg.Data["error"].(string), "unknown event") {
		t.Errorf("Expected unknown event error, got %v", msg.Data)
	}
}

func TestWebSocket_BroadcastsRunUpdates(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	tpl, _ := env.store.Get(t.Context(), "course-completion")
	runID, err := env.queue.Enqueue(tpl, []binding.Row{{"Name": "Ada"}}, batch.FormatPNG)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	progress := readEvent(t, conn, EventProgress)
	if progress.Data["run_id"] != runID {
		t.Errorf("Expected progress for %s, got %v", runID, progress.Data)
	}

	for {
		msg := readEvent(t, conn, EventRunUpdated)
		if msg.Data["id"] != runID {
			t.Fatalf("Unexpected run %v", msg.Data["id"])
		}
		if msg.Data["status"] == string(batch.StatusCompleted) {
			break
		}
	}
}

func TestWebSocket_CancelUnknownRun(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	conn.WriteJSON(WSMessage{Event: EventCancel, Data: map[string]interface{}{"run_id": "nope"}})
	msg := readEvent(t, conn, EventError)
	if !strings.Contains(msg.Data["error"].(string), "run not found") {
		t.Errorf("Expected run not found, got %v", msg.Data)
	}
}

func TestHub_CloseDisconnects(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	env.server.Hub().Close()
	if env.server.Hub().Count() != 0 {
		t.Errorf("Expected no clients after close, got %d", env.server.Hub().Count())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected connection to be closed")
	}
}
