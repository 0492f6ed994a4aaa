package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ApiOptions)(nil)

// ApiOptions configures the client of the cartrack backend.
type ApiOptions struct {
	// BaseURL is the backend root, e.g. https://api.cartrack.io.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// Timeout bounds a single request including the body read.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	UserAgent string `json:"user-agent" mapstructure:"user-agent"`

	// MediaType is sent as Accept and, for requests with a body, Content-Type.
	MediaType string `json:"media-type" mapstructure:"media-type"`
}

// NewApiOptions creates an ApiOptions with default values.
func NewApiOptions() *ApiOptions {
	return &ApiOptions{
		BaseURL:   "https://api.cartrack.io",
		Timeout:   30 * time.Second,
		UserAgent: "cartrack-agent/1.0",
		MediaType: "application/vnd.cartrack.v1+json",
	}
}

func (o *ApiOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if err := ValidateURL(o.BaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if o.MediaType == "" {
		errs = append(errs, errors.New("api.media-type is required"))
	}
	return errs
}

func (o *ApiOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BaseURL, "api.base-url", o.BaseURL, "Base URL of the cartrack backend.")
	fs.DurationVar(&o.Timeout, "api.timeout", o.Timeout, "Timeout for a single backend request.")
	fs.StringVar(&o.UserAgent, "api.user-agent", o.UserAgent, "User-Agent header sent to the backend.")
	fs.StringVar(&o.MediaType, "api.media-type", o.MediaType, "Media type used for Accept and Content-Type headers.")
}
