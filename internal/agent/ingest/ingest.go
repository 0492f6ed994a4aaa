// Package ingest folds vehicle bus messages into the telemetry source.
package ingest

import (
	"context"

	"github.com/autopeer-io/cartrack/internal/agent/core"
	"github.com/autopeer-io/cartrack/internal/pkg/metrics"
	"github.com/autopeer-io/cartrack/internal/telemetry"
	"github.com/autopeer-io/cartrack/pkg/log"
)

type Module struct {
	source *telemetry.Source
	logger log.Logger
}

var _ core.Module = (*Module)(nil)

func New(source *telemetry.Source) *Module {
	return &Module{
		source: source,
		logger: log.WithName("ingest"),
	}
}

func (m *Module) Name() string { return "ingest" }

func (m *Module) Setup(context.Context, core.Sender) error { return nil }

func (m *Module) Routes() map[core.EventType]core.HandlerFunc {
	return map[core.EventType]core.HandlerFunc{
		core.EventProperty: core.JSONAdapter(m.handleProperty),
		core.EventLocation: core.JSONAdapter(m.handleLocations),
	}
}

func (m *Module) handleProperty(_ context.Context, ev telemetry.PropertyEvent) error {
	err := m.source.ApplyProperty(ev)
	metrics.IngestedEventsTotal.WithLabelValues("property", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	m.logger.Debug("Property applied", "property", ev.Property)
	return nil
}

// An empty batch still replaces the buffered one; the uploader skips it.
func (m *Module) handleLocations(_ context.Context, fixes []telemetry.LocationFix) error {
	batch := m.source.ReplaceLocations(fixes)
	metrics.IngestedEventsTotal.WithLabelValues("location", metrics.Result(nil)).Inc()
	m.logger.Debug("Location batch received", "seq", batch.Seq, "fixes", len(fixes))
	return nil
}
