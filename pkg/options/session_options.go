package options

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SessionOptions)(nil)

// SessionOptions configures session composition and the preferences file.
type SessionOptions struct {
	// RetryInterval is the fixed delay between failed config or profile fetches.
	RetryInterval time.Duration `json:"retry-interval" mapstructure:"retry-interval"`

	// DefaultLanguage is used when neither the preferences nor the backend pick one.
	DefaultLanguage string `json:"default-language" mapstructure:"default-language"`

	PreferencesFile string `json:"preferences-file" mapstructure:"preferences-file"`
}

func NewSessionOptions() *SessionOptions {
	prefs := "preferences.yaml"
	if home, err := os.UserHomeDir(); err == nil {
		prefs = filepath.Join(home, ".cartrack", "preferences.yaml")
	}

	return &SessionOptions{
		RetryInterval:   30 * time.Second,
		DefaultLanguage: "en",
		PreferencesFile: prefs,
	}
}

func (o *SessionOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.RetryInterval <= 0 {
		errs = append(errs, errors.New("session.retry-interval must be positive"))
	}
	if o.PreferencesFile == "" {
		errs = append(errs, errors.New("session.preferences-file is required"))
	}
	return errs
}

func (o *SessionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.RetryInterval, "session.retry-interval", o.RetryInterval, "Delay between failed config or profile fetches.")
	fs.StringVar(&o.DefaultLanguage, "session.default-language", o.DefaultLanguage, "Language used when no preference is stored.")
	fs.StringVar(&o.PreferencesFile, "session.preferences-file", o.PreferencesFile, "YAML file holding the selected car and language.")
}
