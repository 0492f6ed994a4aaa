package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandlerFunc processes the raw payload of an inbound event.
type HandlerFunc func(ctx context.Context, payload []byte) error

// JSONAdapter decodes the payload into T before calling fn.
func JSONAdapter[T any](fn func(ctx context.Context, msg T) error) HandlerFunc {
	return func(ctx context.Context, payload []byte) error {
		var msg T
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode %T: %w", msg, err)
		}
		return fn(ctx, msg)
	}
}
