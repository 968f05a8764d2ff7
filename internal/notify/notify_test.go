package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type fakeRedis struct {
	mu       sync.Mutex
	channel  string
	payloads [][]byte
	err      error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = channel
	f.payloads = append(f.payloads, message.([]byte))
	return redis.NewIntResult(1, f.err)
}

func (f *fakeRedis) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

var _ RedisPublisher = (*redis.Client)(nil)

func TestRedisNotifier_PublishesJSON(t *testing.T) {
	client := &fakeRedis{}
	n := NewRedisNotifier(client, RedisConfig{Channel: "scaling"})

	ctx, cancel := context.WithCancel(context.Background())
	n.Notify(ctx, models.NewEvent(models.EventTypeScalingComplete, "web", "scaled"))
	cancel()

	require.Eventually(t, func() bool { return client.count() == 1 }, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, "scaling", client.channel)

	var decoded models.Event
	require.NoError(t, json.Unmarshal(client.payloads[0], &decoded))
	assert.Equal(t, models.EventTypeScalingComplete, decoded.Type)
	assert.Equal(t, "web", decoded.FleetID)
}

func TestRedisNotifier_ErrorsAreSwallowed(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	n := NewRedisNotifier(client, RedisConfig{})

	start := time.Now()
	n.Notify(context.Background(), models.NewEvent(models.EventTypeError, "web", "x"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Eventually(t, func() bool { return client.count() == 1 }, time.Second, 5*time.Millisecond)
}

type collecting struct {
	mu    sync.Mutex
	types []models.EventType
}

func (c *collecting) Notify(_ context.Context, e *models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, e.Type)
}

func TestMultiAndFilter(t *testing.T) {
	a, b := &collecting{}, &collecting{}
	m := Multi{a, nil, Filter{Next: b, Types: []models.EventType{models.EventTypeScalingFailed}}}

	m.Notify(context.Background(), models.NewEvent(models.EventTypeScalingComplete, "web", "ok"))
	m.Notify(context.Background(), models.NewEvent(models.EventTypeScalingFailed, "web", "bad"))

	assert.Equal(t, []models.EventType{models.EventTypeScalingComplete, models.EventTypeScalingFailed}, a.types)
	assert.Equal(t, []models.EventType{models.EventTypeScalingFailed}, b.types)
}
