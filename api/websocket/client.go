package websocket

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	fleetID string
	types   []MessageType
}

func NewClient(hub *Hub, conn *websocket.Conn, fleetID string, types []MessageType) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.settings.ClientBuffer),
		fleetID: fleetID,
		types:   types,
	}
}

// accepts reports whether the client's subscription covers the message. An
// empty fleet or type filter matches everything.
func (c *Client) accepts(fleetID string, msgType MessageType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fleetID != "" && c.fleetID != fleetID {
		return false
	}
	return len(c.types) == 0 || slices.Contains(c.types, msgType)
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	s := c.hub.settings
	c.conn.SetReadLimit(s.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.PongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithComponent("websocket").Warnf("Read error: %v", err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.handleMessage(&msg)
		}
	}
}

func (c *Client) WritePump() {
	s := c.hub.settings
	ticker := time.NewTicker(s.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one message per frame; clients parse each frame as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *IncomingMessage) {
	switch msg.Type {
	case "subscribe":
		c.mu.Lock()
		c.fleetID = msg.FleetID
		c.types = msg.Types
		c.mu.Unlock()
		c.confirm("subscribed", msg.FleetID, msg.Types)
	case "unsubscribe":
		c.mu.Lock()
		fleetID := c.fleetID
		c.fleetID = ""
		c.types = nil
		c.mu.Unlock()
		c.confirm("unsubscribed", fleetID, nil)
	}
}

func (c *Client) confirm(action, fleetID string, types []MessageType) {
	data, err := json.Marshal(SubscriptionUpdate{
		Type:      MessageTypeSubscription,
		Action:    action,
		FleetID:   fleetID,
		Types:     types,
		Timestamp: time.Now(),
	})
	if err != nil {
		logger.Errorf("Failed to marshal subscription update: %v", err)
		return
	}

	// the hub may close send concurrently
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		logger.WithComponent("websocket").Warn("Client send buffer full, dropping confirmation")
	}
}

func parseTypes(raw string) []MessageType {
	if raw == "" {
		return nil
	}
	var types []MessageType
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, MessageType(t))
		}
	}
	return types
}

// ServeWebSocket upgrades the request. Query parameters fleet_id and types
// (comma separated) set the initial subscription.
func ServeWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  hub.settings.ReadBufferSize,
		WriteBufferSize: hub.settings.WriteBufferSize,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	return func(c *gin.Context) {
		if hub.Full() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many websocket connections"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithComponent("websocket").Warnf("Upgrade failed: %v", err)
			return
		}

		client := NewClient(hub, conn, c.Query("fleet_id"), parseTypes(c.Query("types")))
		if !hub.Register(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
