package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/logging"
)

// wsSendBufferSize is the per-client outbound event buffer.
const wsSendBufferSize = 256

// PropertyEvent is one property publication as streamed on /ws.
type PropertyEvent struct {
	DeviceID  string      `json:"device_id"`
	Property  string      `json:"property"`
	Value     field.Value `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub streams property publications to WebSocket clients. It implements
// engine.Publisher.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// wsClient is one /ws connection. devices is fixed at connect time; an
// empty set means every device.
type wsClient struct {
	conn    *websocket.Conn
	devices map[string]struct{}
	out     chan []byte
}

func (c *wsClient) wants(deviceID string) bool {
	if len(c.devices) == 0 {
		return true
	}
	_, ok := c.devices[deviceID]
	return ok
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues the event for every interested client. A client whose
// buffer is full misses the event.
func (h *Hub) Publish(deviceID, property string, v field.Value) error {
	data, err := json.Marshal(PropertyEvent{
		DeviceID:  deviceID,
		Property:  property,
		Value:     v,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding property event: %w", err)
	}

	// Channels are only closed under the write lock.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(deviceID) {
			continue
		}
		select {
		case c.out <- data:
		default:
			h.logger.Debug("websocket client lagging, event dropped",
				"device", deviceID, "property", property)
		}
	}
	return nil
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "devices", len(c.devices))
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	dropped := h.dropLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	if dropped {
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// dropLocked detaches c and closes its queue once.
func (h *Hub) dropLocked(c *wsClient) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.out)
	return true
}

func (h *Hub) pingInterval() time.Duration {
	return time.Duration(max(h.cfg.PingInterval, 1)) * time.Second
}

func (h *Hub) writeWait() time.Duration {
	return time.Duration(max(h.cfg.PongTimeout, 1)) * time.Second
}

// readLoop consumes control frames until the peer goes away or misses a
// pong. Data frames from the client are discarded.
func (h *Hub) readLoop(c *wsClient) {
	defer h.remove(c)

	wait := h.pingInterval() + h.writeWait()
	if h.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	}
	//nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

// writeLoop drains c.out and keeps the connection alive with pings. A
// closed queue ends the connection.
func (h *Hub) writeLoop(c *wsClient) {
	ping := time.NewTicker(h.pingInterval())
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.out:
			deadline := time.Now().Add(h.writeWait())
			if !ok {
				//nolint:errcheck // peer may already be gone
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
				return
			}
			//nolint:errcheck // write error caught below
			c.conn.SetWriteDeadline(deadline)
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait())); err != nil {
				return
			}
		}
	}
}

// handleWebSocket streams property events. Repeated ?device= parameters
// restrict the stream to those devices.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	devices := make(map[string]struct{})
	for _, id := range r.URL.Query()["device"] {
		if _, err := s.devices.Get(id); err != nil {
			writeNotFound(w, "device not found: "+id)
			return
		}
		devices[id] = struct{}{}
	}

	// Upgrade writes its own error response.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "origin", r.Header.Get("Origin"))
		return
	}

	c := &wsClient{
		conn:    conn,
		devices: devices,
		out:     make(chan []byte, wsSendBufferSize),
	}
	s.hub.add(c)
	go s.hub.writeLoop(c)
	go s.hub.readLoop(c)
}
