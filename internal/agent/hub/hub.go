package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autopeer-io/cartrack/internal/agent/core"
	"github.com/autopeer-io/cartrack/pkg/log"
	"github.com/autopeer-io/cartrack/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/cartrack/pkg/mqtt/topic"
)

// Hub binds agent events to MQTT topics of one vehicle.
type Hub struct {
	vid string

	mc     mqtt.Client
	topics *mqtttopic.TopicBuilder

	mu     sync.Mutex
	routes map[string]core.HandlerFunc
}

var _ core.Sender = (*Hub)(nil)

func New(vid string, client mqtt.Client, topicbuilder *mqtttopic.TopicBuilder) *Hub {
	return &Hub{
		vid:    vid,
		mc:     client,
		topics: topicbuilder,
		routes: make(map[string]core.HandlerFunc),
	}
}

// Send publishes payload on the topic of event. Outbound events are
// retained so a display connecting later sees the latest value.
func (b *Hub) Send(ctx context.Context, event core.EventType, payload []byte) error {
	topic, err := b.topic(event)
	if err != nil {
		return err
	}
	return b.mc.Publish(ctx, topic, 1, true, payload)
}

func (b *Hub) IsConnected() bool {
	return b.mc.IsConnected()
}

// Start connects and subscribes every registered route.
func (b *Hub) Start(ctx context.Context) error {
	if err := b.mc.Start(ctx); err != nil {
		return err
	}

	if err := b.mc.AwaitConnection(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, handler := range b.routes {
		err := b.mc.Subscribe(ctx, topic, 1, func(c context.Context, _ string, p []byte) {
			if handleErr := handler(c, p); handleErr != nil {
				log.Error(handleErr, "Handler execution failed", "topic", topic)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	return nil
}

func (b *Hub) Stop() {
	log.Info("Disconnecting MQTT client")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.mc.Disconnect(ctx)
}
