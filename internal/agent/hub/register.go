package hub

import (
	"fmt"

	"github.com/autopeer-io/cartrack/internal/agent/core"
	mqtttopic "github.com/autopeer-io/cartrack/pkg/mqtt/topic"
)

var segments = map[core.EventType]string{
	core.EventProperty:     mqtttopic.SegmentProperty,
	core.EventLocation:     mqtttopic.SegmentLocation,
	core.EventSessionState: mqtttopic.SegmentSessionState,
	core.EventUploadStatus: mqtttopic.SegmentUploadStatus,
	core.EventPresence:     mqtttopic.SegmentPresence,
}

// Register routes inbound messages of event to handler. It must be called
// before Start.
func (b *Hub) Register(event core.EventType, handler core.HandlerFunc) error {
	topic, err := b.topic(event)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.routes[topic]; dup {
		return fmt.Errorf("event %s already has a handler", event)
	}
	b.routes[topic] = handler
	return nil
}

// Topic returns the topic of event for this vehicle.
func (b *Hub) Topic(event core.EventType) (string, error) {
	return b.topic(event)
}

func (b *Hub) topic(event core.EventType) (string, error) {
	segment, ok := segments[event]
	if !ok {
		return "", fmt.Errorf("unmapped event: %s", event)
	}
	return b.topics.Build(segment, b.vid), nil
}
