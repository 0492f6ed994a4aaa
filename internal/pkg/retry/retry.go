// Package retry holds the fixed-delay retry loop used by the remote loaders.
package retry

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/pkg/log"
)

// UntilSuccess calls fn until it returns nil, waiting delay between attempts.
// It returns nil after the first success, or ctx.Err() once ctx is done.
// It never calls fn again after a success.
func UntilSuccess(ctx context.Context, clk clock.Clock, delay time.Duration, name string, fn func(ctx context.Context) error) error {
	logger := log.WithName("retry").WithValues("resource", name)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("Loaded after retrying", "attempt", attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("Load failed, retrying", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(delay):
		}
	}
}
