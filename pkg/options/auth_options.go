package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AuthOptions)(nil)

// AuthOptions configures where the agent obtains the driver's identity token.
//
// Either TokenFile (an id token kept fresh by an external sign-in helper) or
// RefreshTokenFile together with the OAuth client settings must be set.
type AuthOptions struct {
	ClientID     string `json:"client-id" mapstructure:"client-id"`
	ClientSecret string `json:"client-secret" mapstructure:"client-secret"`
	AuthURL      string `json:"auth-url" mapstructure:"auth-url"`
	TokenURL     string `json:"token-url" mapstructure:"token-url"`

	// RefreshTokenFile holds the long-lived refresh token written at sign-in.
	RefreshTokenFile string `json:"refresh-token-file" mapstructure:"refresh-token-file"`

	// TokenFile holds a ready-to-use id token. Takes precedence over RefreshTokenFile.
	TokenFile string `json:"token-file" mapstructure:"token-file"`

	// RetryInterval is the delay between failed sign-in attempts.
	RetryInterval time.Duration `json:"retry-interval" mapstructure:"retry-interval"`
}

// NewAuthOptions creates an AuthOptions with Google endpoints as defaults.
func NewAuthOptions() *AuthOptions {
	return &AuthOptions{
		AuthURL:       "https://accounts.google.com/o/oauth2/auth",
		TokenURL:      "https://oauth2.googleapis.com/token",
		RetryInterval: 30 * time.Second,
	}
}

func (o *AuthOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.TokenFile == "" && o.RefreshTokenFile != "" {
		if o.ClientID == "" {
			errs = append(errs, errors.New("auth.client-id is required with auth.refresh-token-file"))
		}
		if err := ValidateURL(o.TokenURL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}
	if o.RetryInterval <= 0 {
		errs = append(errs, errors.New("auth.retry-interval must be positive"))
	}
	return errs
}

func (o *AuthOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ClientID, "auth.client-id", o.ClientID, "OAuth client ID used to refresh the identity token.")
	fs.StringVar(&o.ClientSecret, "auth.client-secret", o.ClientSecret, "OAuth client secret.")
	fs.StringVar(&o.AuthURL, "auth.auth-url", o.AuthURL, "OAuth authorization endpoint.")
	fs.StringVar(&o.TokenURL, "auth.token-url", o.TokenURL, "OAuth token endpoint.")
	fs.StringVar(&o.RefreshTokenFile, "auth.refresh-token-file", o.RefreshTokenFile, "File containing the OAuth refresh token.")
	fs.StringVar(&o.TokenFile, "auth.token-file", o.TokenFile, "File containing an id token maintained by an external sign-in helper.")
	fs.DurationVar(&o.RetryInterval, "auth.retry-interval", o.RetryInterval, "Delay between failed sign-in attempts.")
}
