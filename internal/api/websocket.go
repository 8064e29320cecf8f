package api

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gakushoku/kitchen-terminal/internal/gate"
	"github.com/gakushoku/kitchen-terminal/internal/printer"
)

// WebSocket event names. The kitchen display sends scan and manual events
// in; the terminal pushes status and printer notices out.
const (
	EventScan          = "scan"
	EventManual        = "manual"
	EventStatus        = "status"
	EventPrinterNotice = "printer_notice"
	EventError         = "error"
)

// WSMessage is the envelope for every WebSocket frame.
type WSMessage struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// WSClient is one connected display.
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
	mu     sync.Mutex
}

// hub tracks connected clients for broadcasts.
type hub struct {
	mu      sync.RWMutex
	clients map[*WSClient]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*WSClient]bool)}
}

func (h *hub) add(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *hub) remove(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *hub) broadcast(msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Client send buffer full, skip
		}
	}
}

// handleWebSocket upgrades the connection and starts the pumps.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, 256),
		server: s,
	}

	s.logger.Info("📡 Display connected")

	go client.readPump()
	go client.writePump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.mu.Lock()
		err := c.conn.WriteJSON(msg)
		c.mu.Unlock()

		if err != nil {
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.hub.remove(c)
		c.conn.Close()
		c.server.logger.Info("📡 Display disconnected")
	}()

	c.server.hub.add(c)

	// Greet the new display with the current state.
	c.send <- statusMessage(c.server.gate.Status())

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn("WebSocket read error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventScan:
		token, ok := msg.Data["token"].(string)
		if !ok || token == "" {
			c.sendError("token is required")
			return
		}
		c.server.decoder.Push(token)

	case EventManual:
		orderID, ok := msg.Data["order_id"].(string)
		if !ok || orderID == "" {
			c.sendError("order_id is required")
			return
		}
		if err := c.server.gate.Submit(orderID); err != nil {
			c.sendError(err.Error())
		}

	default:
		c.sendError("unknown event: " + msg.Event)
	}
}

func (c *WSClient) sendError(message string) {
	c.send <- WSMessage{
		Event: EventError,
		Data:  map[string]any{"error": message},
	}
}

func statusMessage(st gate.Status) WSMessage {
	return WSMessage{
		Event: EventStatus,
		Data: map[string]any{
			"scanning":      st.Scanning,
			"processing":    st.Processing,
			"message":       st.Message,
			"last_outcome":  st.LastOutcome,
			"printer_state": st.PrinterState,
			"next_ticket":   st.NextTicket,
			"printed_count": st.PrintedCount,
		},
	}
}

// BroadcastStatus pushes a gate snapshot to every display. Wired as the
// gate's update handler.
func (s *Server) BroadcastStatus(st gate.Status) {
	s.hub.broadcast(statusMessage(st))
}

// BroadcastPrinterNotice pushes a printer fault or recovery to every
// display. Wired as the session's notice handler.
func (s *Server) BroadcastPrinterNotice(n printer.Notice) {
	s.hub.broadcast(WSMessage{
		Event: EventPrinterNotice,
		Data:  map[string]any{"notice": string(n)},
	})
}
