// Package uploader delivers location batches for the active car while a
// user is signed in.
package uploader

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/auth"
	"github.com/autopeer-io/cartrack/internal/pkg/metrics"
	"github.com/autopeer-io/cartrack/internal/pkg/outcome"
	"github.com/autopeer-io/cartrack/internal/pkg/stream"
	"github.com/autopeer-io/cartrack/internal/telemetry"
	"github.com/autopeer-io/cartrack/pkg/log"
)

// AuthSource publishes the sign-in outcome.
type AuthSource interface {
	Outcomes(ctx context.Context) <-chan outcome.Outcome[auth.Identity]
}

// LocationSource publishes location batches and the current snapshot.
type LocationSource interface {
	Locations(ctx context.Context) <-chan telemetry.Batch
	Reading() telemetry.Reading
}

// CarSource publishes the active car; nil when none is selected.
type CarSource interface {
	ActiveCar(ctx context.Context) <-chan *api.Car
}

// Poster sends one batch.
type Poster interface {
	PostLocations(ctx context.Context, carToken string, update *api.LocationUpdate) (*api.Ack, error)
}

// Archiver keeps a copy of every acknowledged batch.
type Archiver interface {
	Archive(ctx context.Context, update *api.LocationUpdate, ack *api.Ack) error
}

// Pipeline uploads each new (batch, car) combination once, latest wins.
type Pipeline struct {
	auth      AuthSource
	locations LocationSource
	cars      CarSource
	poster    Poster
	archiver  Archiver
	clock     clock.PassiveClock
	logger    log.Logger

	status *stream.State[outcome.Outcome[api.Ack]]
}

type Option func(*Pipeline)

func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

func WithClock(c clock.PassiveClock) Option {
	return func(p *Pipeline) { p.clock = c }
}

func New(authSrc AuthSource, locations LocationSource, cars CarSource, poster Poster, opts ...Option) *Pipeline {
	p := &Pipeline{
		auth:      authSrc,
		locations: locations,
		cars:      cars,
		poster:    poster,
		clock:     clock.RealClock{},
		logger:    log.WithName("uploader"),
		status:    stream.NewStateOf(outcome.Idle[api.Ack]()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Status streams the outcome of the latest upload attempt, starting with
// the current one.
func (p *Pipeline) Status(ctx context.Context) <-chan outcome.Outcome[api.Ack] {
	return p.status.Subscribe(ctx)
}

// Current returns the outcome of the latest upload attempt.
func (p *Pipeline) Current() outcome.Outcome[api.Ack] {
	o, _ := p.status.Get()
	return o
}

// Run blocks until ctx is done. Upload failures never stop it.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("Upload pipeline started")

	outcomes := stream.Distinct(ctx, p.auth.Outcomes(ctx), outcome.Equal[auth.Identity])
	stream.SwitchLatest(ctx, outcomes, func(runCtx context.Context, o outcome.Outcome[auth.Identity]) {
		if !o.IsSuccess() {
			p.abandon()
			return
		}
		id, _ := o.Value()
		p.logger.Info("Uploads enabled", "email", id.Email)
		p.runAuthenticated(runCtx)
	})

	p.logger.Info("Upload pipeline stopped")
	return nil
}

// abandon resets a status left in Loading by a cancelled attempt.
func (p *Pipeline) abandon() {
	p.status.Update(func(cur outcome.Outcome[api.Ack]) outcome.Outcome[api.Ack] {
		if cur.Status() == outcome.StatusLoading {
			return outcome.Idle[api.Ack]()
		}
		return cur
	})
}

type attempt = stream.Pair[telemetry.Batch, *api.Car]

func (p *Pipeline) runAuthenticated(ctx context.Context) {
	batches := stream.Filter(ctx, p.locations.Locations(ctx), func(b telemetry.Batch) bool {
		return !b.Empty()
	})
	attempts := stream.Distinct(ctx, stream.CombineLatest2(ctx, batches, p.cars.ActiveCar(ctx)), sameAttempt)

	stream.SwitchLatest(ctx, attempts, func(runCtx context.Context, a attempt) {
		p.upload(runCtx, a.First, a.Second)
	})
}

func sameAttempt(a, b attempt) bool {
	return a.First.Seq == b.First.Seq && carKey(a.Second) == carKey(b.Second)
}

func carKey(c *api.Car) string {
	if c == nil {
		return ""
	}
	return c.ID + "\x00" + c.Token
}

func (p *Pipeline) upload(ctx context.Context, batch telemetry.Batch, car *api.Car) {
	if car == nil {
		p.logger.Debug("No active car, skipping batch", "batch", batch.Seq)
		return
	}

	logger := p.logger.WithValues("carID", car.ID, "batch", batch.Seq)
	update := &api.LocationUpdate{
		Updates: batch.Fixes,
		CarID:   car.ID,
		Car:     p.locations.Reading(),
	}

	p.status.Set(outcome.Loading[api.Ack]())
	start := p.clock.Now()

	ack, err := p.poster.PostLocations(ctx, car.Token, update)
	if ctx.Err() != nil {
		metrics.UploadsTotal.WithLabelValues("cancelled").Inc()
		logger.Debug("Upload superseded")
		return
	}

	metrics.UploadLatency.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		logger.Error(err, "Upload failed")
		p.status.Set(outcome.Failure[api.Ack](err))
		return
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.FixesUploadedTotal.Add(float64(len(batch.Fixes)))
	logger.Info("Batch uploaded", "fixes", len(batch.Fixes), "message", ack.Message)
	p.status.Set(outcome.Success(*ack))

	if p.archiver != nil {
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		err := p.archiver.Archive(archiveCtx, update, ack)
		metrics.ArchivedBatchesTotal.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			logger.Error(err, "Archiving batch failed")
		}
	}
}
