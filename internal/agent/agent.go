package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/internal/agent/core"
	"github.com/autopeer-io/cartrack/internal/agent/hal"
	"github.com/autopeer-io/cartrack/internal/agent/hub"
	"github.com/autopeer-io/cartrack/internal/agent/server"
	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/archive"
	"github.com/autopeer-io/cartrack/internal/auth"
	"github.com/autopeer-io/cartrack/internal/pkg/outcome"
	"github.com/autopeer-io/cartrack/internal/pkg/retry"
	"github.com/autopeer-io/cartrack/internal/pkg/stream"
	"github.com/autopeer-io/cartrack/internal/prefs"
	"github.com/autopeer-io/cartrack/internal/session"
	"github.com/autopeer-io/cartrack/internal/telemetry"
	"github.com/autopeer-io/cartrack/internal/uploader"
	"github.com/autopeer-io/cartrack/pkg/log"
)

// Agent runs the session, the upload pipeline and everything feeding them.
// hub, archive, simulator and server are optional.
type Agent struct {
	vehicleID   string
	clock       clock.Clock
	signInRetry time.Duration

	auth      *auth.Session
	client    *api.Client
	prefs     *prefs.Store
	session   *session.Service
	telemetry *telemetry.Source
	uploader  *uploader.Pipeline
	archive   *archive.MinIO

	hub       *hub.Hub
	modules   []core.Module
	simulator *hal.Simulator
	server    *server.Server
}

func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting cartrack-agent", "vehicleID", a.vehicleID)

	if a.hub != nil {
		for _, m := range a.modules {
			if err := m.Setup(ctx, a.hub); err != nil {
				return fmt.Errorf("module %s setup failed: %w", m.Name(), err)
			}
			for event, handler := range m.Routes() {
				if err := a.hub.Register(event, handler); err != nil {
					return fmt.Errorf("module %s register event %s failed: %w", m.Name(), event, err)
				}
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.prefs.Run(ctx) })
	g.Go(func() error { return a.session.Run(ctx) })
	g.Go(func() error { return a.uploader.Run(ctx) })
	g.Go(func() error { return a.invalidateTokens(ctx) })
	g.Go(func() error { return a.signIn(ctx) })

	if a.archive != nil {
		g.Go(func() error {
			return retry.UntilSuccess(ctx, a.clock, a.signInRetry, "archive-bucket", a.archive.CheckBucket)
		})
	}

	if a.hub != nil {
		g.Go(func() error {
			if err := a.hub.Start(ctx); err != nil {
				return fmt.Errorf("hub start: %w", err)
			}
			<-ctx.Done()
			a.hub.Stop()
			return nil
		})
		for _, m := range a.modules {
			if r, ok := m.(core.Runner); ok {
				g.Go(func() error { return r.Run(ctx) })
			}
		}
	}

	if a.simulator != nil {
		g.Go(func() error { return a.simulator.Run(ctx) })
	}

	if a.server != nil {
		g.Go(func() error { return a.server.Start(ctx) })
	}

	err := g.Wait()
	log.Info("Agent shutting down...")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// signIn retries until a sign-in succeeds, then waits for the session to
// fall back to Idle (credential withdrawn) and starts over.
func (a *Agent) signIn(ctx context.Context) error {
	for {
		err := retry.UntilSuccess(ctx, a.clock, a.signInRetry, "sign-in", a.auth.SignIn)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		if !a.awaitSignOut(ctx) {
			return nil
		}
		log.Info("Signed out, waiting for a new credential")
	}
}

func (a *Agent) awaitSignOut(ctx context.Context) bool {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	signedOut := stream.Filter(waitCtx, a.auth.Outcomes(waitCtx), func(o outcome.Outcome[auth.Identity]) bool {
		return o.Status() == outcome.StatusIdle
	})
	_, ok := <-signedOut
	return ok
}

// invalidateTokens drops the cached identity token whenever the signed-in
// identity changes.
func (a *Agent) invalidateTokens(ctx context.Context) error {
	for range stream.Distinct(ctx, a.auth.Outcomes(ctx), outcome.Equal[auth.Identity]) {
		a.client.InvalidateToken()
	}
	return nil
}
