// Package mirror publishes session and upload state to display
// collaborators on the vehicle bus.
package mirror

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/internal/agent/core"
	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/pkg/outcome"
	"github.com/autopeer-io/cartrack/internal/pkg/retry"
	"github.com/autopeer-io/cartrack/internal/pkg/stream"
	"github.com/autopeer-io/cartrack/internal/session"
	"github.com/autopeer-io/cartrack/pkg/log"
)

type StateSource interface {
	States(ctx context.Context) <-chan session.State
}

type StatusSource interface {
	Status(ctx context.Context) <-chan outcome.Outcome[api.Ack]
}

type Module struct {
	vid     string
	states  StateSource
	uploads StatusSource

	clock      clock.Clock
	retryDelay time.Duration

	sender core.Sender
	logger log.Logger
}

var (
	_ core.Module = (*Module)(nil)
	_ core.Runner = (*Module)(nil)
)

type Option func(*Module)

func WithClock(c clock.Clock) Option {
	return func(m *Module) { m.clock = c }
}

// WithRetryDelay sets the wait before republishing a value the bus refused.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Module) { m.retryDelay = d }
}

func New(vid string, states StateSource, uploads StatusSource, opts ...Option) *Module {
	m := &Module{
		vid:        vid,
		states:     states,
		uploads:    uploads,
		clock:      clock.RealClock{},
		retryDelay: 5 * time.Second,
		logger:     log.WithName("mirror"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string { return "mirror" }

func (m *Module) Setup(_ context.Context, sender core.Sender) error {
	m.sender = sender
	return nil
}

func (m *Module) Routes() map[core.EventType]core.HandlerFunc { return nil }

// Run announces the agent online, then republishes every session state and
// upload status until ctx is done. A value the bus refuses is retried until
// a newer one supersedes it.
func (m *Module) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.publish(gctx, core.EventPresence, core.Presence{VehicleID: m.vid, Online: true})
		return nil
	})
	g.Go(func() error {
		states := stream.Map(gctx, m.states.States(gctx), session.State.Redacted)
		stream.SwitchLatest(gctx, states, func(c context.Context, st session.State) {
			m.publish(c, core.EventSessionState, st)
		})
		return nil
	})
	g.Go(func() error {
		stream.SwitchLatest(gctx, m.uploads.Status(gctx), func(c context.Context, o outcome.Outcome[api.Ack]) {
			m.publish(c, core.EventUploadStatus, o)
		})
		return nil
	})
	_ = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := core.SendJSON(shutdownCtx, m.sender, core.EventPresence, core.Presence{VehicleID: m.vid, Online: false, Reason: "Shutdown"}); err != nil {
		m.logger.Warn("Failed to announce shutdown", "error", err)
	}
	return nil
}

func (m *Module) publish(ctx context.Context, event core.EventType, v any) {
	_ = retry.UntilSuccess(ctx, m.clock, m.retryDelay, string(event), func(c context.Context) error {
		return core.SendJSON(c, m.sender, event, v)
	})
}
