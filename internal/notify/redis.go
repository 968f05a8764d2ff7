// Package notify delivers events to external channels.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// RedisPublisher is the subset of *redis.Client the notifier uses.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes each event as JSON on a pub/sub channel. Publishing
// happens on its own goroutine with its own timeout; Notify returns at once.
type RedisNotifier struct {
	client  RedisPublisher
	channel string
	timeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	Timeout  time.Duration
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisNotifier(client RedisPublisher, cfg RedisConfig) *RedisNotifier {
	if cfg.Channel == "" {
		cfg.Channel = "autoscaler:events"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &RedisNotifier{
		client:  client,
		channel: cfg.Channel,
		timeout: cfg.Timeout,
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, event *models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("Failed to encode event %s for redis: %v", event.Type, err)
		return
	}

	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.client.Publish(pctx, n.channel, payload).Err(); err != nil {
			logger.WithComponent("notify").Warnf("Redis publish of %s failed: %v", event.Type, err)
		}
	}()
}
