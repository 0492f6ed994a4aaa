package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*TelemetryOptions)(nil)

// TelemetryOptions selects where vehicle signals come from.
type TelemetryOptions struct {
	// VehicleID overrides discovery from the environment and /etc/cartrack/vin.
	VehicleID string `json:"vehicle-id" mapstructure:"vehicle-id"`

	// Simulate feeds generated signals instead of the vehicle bus.
	Simulate bool `json:"simulate" mapstructure:"simulate"`

	// SimulateInterval is the period between simulated location batches.
	SimulateInterval time.Duration `json:"simulate-interval" mapstructure:"simulate-interval"`
}

func NewTelemetryOptions() *TelemetryOptions {
	return &TelemetryOptions{
		SimulateInterval: 10 * time.Second,
	}
}

func (o *TelemetryOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.Simulate && o.SimulateInterval <= 0 {
		errs = append(errs, errors.New("telemetry.simulate-interval must be positive"))
	}
	return errs
}

func (o *TelemetryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.VehicleID, "telemetry.vehicle-id", o.VehicleID, "Vehicle identifier; discovered automatically when empty.")
	fs.BoolVar(&o.Simulate, "telemetry.simulate", o.Simulate, "Generate vehicle signals instead of reading them from the vehicle bus.")
	fs.DurationVar(&o.SimulateInterval, "telemetry.simulate-interval", o.SimulateInterval, "Period between simulated location batches.")
}
