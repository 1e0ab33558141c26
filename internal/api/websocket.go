package api

import (
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereceipt/certificate-engine/internal/batch"
)

// WebSocket message types
const (
	EventPing       = "ping"
	EventPong       = "pong"
	EventCancel     = "cancel"
	EventRunUpdated = "run_updated"
	EventProgress   = "progress"
	EventResponse   = "response"
	EventError      = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
}

// Hub tracks connected clients and fans out run events to them
type Hub struct {
	clients map[*WSClient]bool
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[*WSClient]bool), logger: logger}
}

func (h *Hub) add(client *WSClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = true
	return true
}

// remove drops the client and closes its send channel, which ends its
// write pump
func (h *Hub) remove(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) broadcast(message WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client send buffer full, skip
		}
	}
}

// BroadcastRun publishes a run state change. It matches the
// batch.WithUpdates callback.
func (h *Hub) BroadcastRun(run batch.Run) {
	data := map[string]interface{}{
		"id":          run.ID,
		"template_id": run.TemplateID,
		"status":      run.Status,
		"total_rows":  run.TotalRows,
	}
	if run.Report != nil {
		data["report"] = run.Report
	}
	if run.Error != "" {
		data["error"] = run.Error
	}
	h.broadcast(WSMessage{Event: EventRunUpdated, Data: data})
}

// BroadcastProgress publishes per-row progress. It matches the
// batch.WithProgress callback.
func (h *Hub) BroadcastProgress(p batch.Progress) {
	h.broadcast(WSMessage{
		Event: EventProgress,
		Data: map[string]interface{}{
			"run_id":    p.RunID,
			"status":    p.Status,
			"done":      p.Done,
			"total":     p.Total,
			"succeeded": p.Succeeded,
			"failed":    p.Failed,
		},
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, 256),
		server: s,
	}
	if !s.deps.Hub.add(client) {
		conn.Close()
		return
	}

	s.logger.Info("websocket client connected", "remote", conn.RemoteAddr().String())

	go client.readPump()
	go client.writePump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.server.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.deps.Hub.remove(c)
		c.server.logger.Info("websocket client disconnected")
	}()

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket read failed", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventPing:
		c.reply(WSMessage{Event: EventPong, Data: map[string]interface{}{}})
	case EventCancel:
		runID, _ := msg.Data["run_id"].(string)
		if runID == "" {
			c.sendError("run_id is required")
			return
		}
		if err := c.server.deps.Queue.Cancel(runID); err != nil {
			c.sendError(err.Error())
			return
		}
		c.reply(WSMessage{Event: EventResponse, Data: map[string]interface{}{"success": true, "run_id": runID}})
	default:
		c.sendError("unknown event: " + msg.Event)
	}
}

// reply queues a message for this client; dropped once the hub has
// released the client
func (c *WSClient) reply(msg WSMessage) {
	hub := c.server.deps.Hub
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.clients[c] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (c *WSClient) sendError(message string) {
	c.reply(WSMessage{
		Event: EventError,
		Data: map[string]interface{}{
			"error": message,
		},
	})
}
