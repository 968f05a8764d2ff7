package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/pkg/config"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

func TestNewSettings_Defaults(t *testing.T) {
	s := NewSettings(config.WebSocketConfig{PongTimeout: 20 * time.Second, PingInterval: time.Minute})

	assert.Equal(t, 18*time.Second, s.PingInterval)
	assert.Equal(t, 10*time.Second, s.WriteTimeout)
	assert.Equal(t, 256, s.ClientBuffer)
}

func TestHub_PublishFiltersAndDropsSlowClients(t *testing.T) {
	hub := NewHub(NewSettings(config.WebSocketConfig{ClientBuffer: 1}))
	all := NewClient(hub, nil, "", nil)
	otherFleet := NewClient(hub, nil, "batch", nil)
	decisionsOnly := NewClient(hub, nil, "", []MessageType{MessageTypeDecision})
	for _, c := range []*Client{all, otherFleet, decisionsOnly} {
		require.True(t, hub.Register(c))
	}

	hub.Publish("web", MessageTypeTick, []byte("first"))

	assert.Len(t, all.send, 1)
	assert.Len(t, otherFleet.send, 0)
	assert.Len(t, decisionsOnly.send, 0)

	hub.Publish("web", MessageTypeTick, []byte("second"))

	assert.Equal(t, 2, hub.ClientCount())
	assert.Equal(t, []byte("first"), <-all.send)
	_, open := <-all.send
	assert.False(t, open)
}

func TestHub_Full(t *testing.T) {
	hub := NewHub(NewSettings(config.WebSocketConfig{MaxConnections: 1}))
	assert.False(t, hub.Full())

	hub.Register(NewClient(hub, nil, "", nil))
	assert.True(t, hub.Full())

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
	assert.False(t, hub.Register(NewClient(hub, nil, "", nil)))
}

func TestMessageType(t *testing.T) {
	tests := []struct {
		event models.EventType
		want  MessageType
	}{
		{models.EventTypeTickCompleted, MessageTypeTick},
		{models.EventTypeDecisionMade, MessageTypeDecision},
		{models.EventTypeScalingFailed, MessageTypeScaling},
		{models.EventTypeThresholdsUpdated, MessageTypeThresholds},
		{models.EventTypeRetrainComplete, MessageTypeRetrain},
		{models.EventType("unknown"), ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			assert.Equal(t, tt.want, messageType(tt.event))
		})
	}
}

func TestServeWebSocket_StreamsSubscribedEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(NewSettings(config.WebSocketConfig{}))
	defer hub.Close()

	router := gin.New()
	router.GET("/ws", ServeWebSocket(hub))
	server := httptest.NewServer(router)
	defer server.Close()

	events := make(chan *models.Event, 4)
	bridge := NewEventBridge(hub, events)
	bridge.Start()
	defer bridge.Stop()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?types=decision"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	events <- models.NewEvent(models.EventTypeTickCompleted, "web", "tick")
	events <- models.NewEvent(models.EventTypeDecisionMade, "web", "scale_up to 4")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, MessageTypeDecision, got.Type)
	assert.Equal(t, models.EventTypeDecisionMade, got.Event)
	assert.Equal(t, "web", got.FleetID)
	assert.Equal(t, "scale_up to 4", got.Message)
}
