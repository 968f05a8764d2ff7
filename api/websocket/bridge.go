package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// EventBridge forwards bus events to websocket clients.
type EventBridge struct {
	hub        *Hub
	eventsChan <-chan *models.Event
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	started    atomic.Bool
}

func NewEventBridge(hub *Hub, eventsChan <-chan *models.Event) *EventBridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBridge{
		hub:        hub,
		eventsChan: eventsChan,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (b *EventBridge) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	go b.run()
	logger.WithComponent("websocket").Info("Event bridge started")
}

func (b *EventBridge) Stop() {
	b.cancel()
	if !b.started.Load() {
		return
	}
	<-b.done
	logger.WithComponent("websocket").Info("Event bridge stopped")
}

func (b *EventBridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.eventsChan:
			if !ok {
				logger.WithComponent("websocket").Info("Event channel closed, stopping bridge")
				return
			}
			b.forward(event)
		}
	}
}

func (b *EventBridge) forward(event *models.Event) {
	msg := newEvent(event)
	if msg == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Failed to marshal websocket message for %s: %v", event.Type, err)
		return
	}
	b.hub.Publish(msg.FleetID, msg.Type, data)
}
