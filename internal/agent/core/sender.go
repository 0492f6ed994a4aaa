package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sender publishes outbound events.
type Sender interface {
	Send(ctx context.Context, event EventType, payload []byte) error
}

// SendJSON encodes v and publishes it as event.
func SendJSON(ctx context.Context, s Sender, event EventType, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return s.Send(ctx, event, payload)
}
