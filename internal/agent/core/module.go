package core

import (
	"context"
)

// Module is a unit of agent functionality attached to the vehicle bus.
type Module interface {
	Name() string

	Setup(ctx context.Context, sender Sender) error

	// Routes maps inbound events to their handlers.
	Routes() map[EventType]HandlerFunc
}

// Runner is implemented by modules that need a loop of their own. Run
// blocks until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}
