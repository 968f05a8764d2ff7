package websocket

import (
	"sync"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/config"
)

type Settings struct {
	MaxConnections  int
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	ClientBuffer    int
}

func NewSettings(cfg config.WebSocketConfig) Settings {
	s := Settings{
		MaxConnections:  cfg.MaxConnections,
		PingInterval:    cfg.PingInterval,
		WriteTimeout:    cfg.WriteTimeout,
		PongTimeout:     cfg.PongTimeout,
		MaxMessageSize:  cfg.MaxMessageSize,
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		ClientBuffer:    cfg.ClientBuffer,
	}
	if s.PongTimeout <= 0 {
		s.PongTimeout = 60 * time.Second
	}
	if s.PingInterval <= 0 || s.PingInterval >= s.PongTimeout {
		s.PingInterval = s.PongTimeout * 9 / 10
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = 10 * time.Second
	}
	if s.MaxMessageSize <= 0 {
		s.MaxMessageSize = 4096
	}
	if s.ReadBufferSize <= 0 {
		s.ReadBufferSize = 1024
	}
	if s.WriteBufferSize <= 0 {
		s.WriteBufferSize = 1024
	}
	if s.ClientBuffer <= 0 {
		s.ClientBuffer = 256
	}
	return s
}

// Hub tracks connected clients. A client whose send buffer is full is
// disconnected rather than allowed to stall the others.
type Hub struct {
	settings Settings

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

func NewHub(settings Settings) *Hub {
	return &Hub{
		settings: settings,
		clients:  make(map[*Client]struct{}),
	}
}

func (h *Hub) Settings() Settings {
	return h.settings
}

// Full reports whether MaxConnections clients are connected. Zero means no
// limit.
func (h *Hub) Full() bool {
	if h.settings.MaxConnections <= 0 {
		return false
	}
	return h.ClientCount() >= h.settings.MaxConnections
}

func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = struct{}{}
	logger.WithComponent("websocket").Infof("Client connected (total: %d)", len(h.clients))
	return true
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(client)
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	logger.WithComponent("websocket").Infof("Client disconnected (total: %d)", len(h.clients))
}

// Publish queues data for every client subscribed to fleetID and msgType.
func (h *Hub) Publish(fleetID string, msgType MessageType, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		if !client.accepts(fleetID, msgType) {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, client := range slow {
		logger.WithComponent("websocket").Warn("Client send buffer full, disconnecting")
		h.remove(client)
	}
	h.mu.Unlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		h.remove(client)
	}
}
