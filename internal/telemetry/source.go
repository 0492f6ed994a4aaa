package telemetry

import (
	"context"
	"sync"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/internal/pkg/stream"
)

// Source owns the telemetry snapshot and the location buffer. Feeds push
// into it; everything else only reads.
type Source struct {
	clock clock.PassiveClock

	mu       sync.Mutex
	seq      uint64
	readings *stream.State[Reading]
	batches  *stream.State[Batch]
}

// NewSource returns a Source holding the Empty snapshot and no batch.
func NewSource(clk clock.PassiveClock) *Source {
	return &Source{
		clock:    clk,
		readings: stream.NewStateOf(Empty, stream.Conflated[Reading]()),
		batches:  stream.NewState(stream.Conflated[Batch]()),
	}
}

// ApplyProperty folds ev into the snapshot. Events without a timestamp are
// stamped with the current time.
func (s *Source) ApplyProperty(ev PropertyEvent) error {
	ts := ev.Timestamp
	if ts == 0 {
		ts = s.clock.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, _ := s.readings.Get()
	next, err := current.With(ev, ts)
	if err != nil {
		return err
	}
	s.readings.Set(next)
	return nil
}

// ReplaceLocations discards the buffered batch and publishes fixes as the
// new one.
func (s *Source) ReplaceLocations(fixes []LocationFix) Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	b := Batch{Seq: s.seq, Fixes: append([]LocationFix(nil), fixes...)}
	s.batches.Set(b)
	return b
}

// Reading returns the current snapshot.
func (s *Source) Reading() Reading {
	r, _ := s.readings.Get()
	return r
}

// LatestBatch returns the buffered batch, if any.
func (s *Source) LatestBatch() (Batch, bool) {
	return s.batches.Get()
}

// Readings streams snapshots, starting with the current one.
func (s *Source) Readings(ctx context.Context) <-chan Reading {
	return s.readings.Subscribe(ctx)
}

// Locations streams location batches, starting with the buffered one.
func (s *Source) Locations(ctx context.Context) <-chan Batch {
	return s.batches.Subscribe(ctx)
}
