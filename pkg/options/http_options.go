package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions configures the local status server: health, readiness,
// metrics and the redacted session view.
type HttpOptions struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	Addr    string        `json:"addr" mapstructure:"addr"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Enabled: true,
		Addr:    "127.0.0.1:8787",
		Timeout: 10 * time.Second,
	}
}

func (o *HttpOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive, got %s", o.Timeout))
	}
	return errs
}

func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "http.enabled", o.Enabled, "Serve health, metrics and session status over HTTP.")
	fs.StringVar(&o.Addr, "http.addr", o.Addr, "Status server bind address (host:port).")
	fs.DurationVar(&o.Timeout, "http.timeout", o.Timeout, "Read and write timeout of a status request.")
}
