package options

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/cartrack/pkg/mqtt"
)

var _ IOptions = (*MqttOptions)(nil)

var brokerSchemes = []string{"tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss"}

// MqttOptions configures the vehicle bus: where signals come in and where
// session and upload status are mirrored.
type MqttOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`

	// ClientID defaults to cartrack-agent-<vehicle id>.
	ClientID string `json:"client-id" mapstructure:"client-id"`

	KeepAlive        time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout   time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ReconnectBackoff time.Duration `json:"reconnect-backoff" mapstructure:"reconnect-backoff"`
	SessionExpiry    uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart       bool          `json:"clean-start" mapstructure:"clean-start"`

	// Test brokers only.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// TopicRoot prefixes every topic: {TopicRoot}/{segment}/{vehicleID}.
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`
}

func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Enabled:          true,
		Broker:           "tcp://127.0.0.1:1883",
		KeepAlive:        time.Minute,
		ConnectTimeout:   5 * time.Second,
		ReconnectBackoff: 3 * time.Second,
		SessionExpiry:    60,
		CleanStart:       true,
		TopicRoot:        "cartrack/v1",
	}
}

func (o *MqttOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if err := ValidateURL(o.Broker, brokerSchemes...); err != nil {
		errs = append(errs, err)
	}
	if o.KeepAlive < time.Second || o.KeepAlive.Seconds() > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("mqtt.keep-alive %s out of range [1s, %ds]", o.KeepAlive, math.MaxUint16))
	}
	if o.TopicRoot == "" {
		errs = append(errs, fmt.Errorf("mqtt.topic-root must not be empty"))
	}
	return errs
}

func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "mqtt.enabled", o.Enabled, "Connect to the vehicle bus broker.")
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "Broker URL ("+fmt.Sprint(brokerSchemes)+").")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "Broker username.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "Broker password.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Client ID; derived from the vehicle ID when empty.")

	fs.DurationVar(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "Keep alive interval, whole seconds.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout of a single connection attempt.")
	fs.DurationVar(&o.ReconnectBackoff, "mqtt.reconnect-backoff", o.ReconnectBackoff, "Pause between connection attempts.")
	fs.Uint32Var(&o.SessionExpiry, "mqtt.session-expiry", o.SessionExpiry, "Session expiry interval in seconds.")
	fs.BoolVar(&o.CleanStart, "mqtt.clean-start", o.CleanStart, "Discard broker-side session state on the first connection.")
	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "Skip broker certificate verification.")
	fs.StringVar(&o.TopicRoot, "mqtt.topic-root", o.TopicRoot, "Root namespace of every topic.")
}

// ToClientConfig maps the options onto a client config. Will and client
// ID defaults are left to the caller, which knows the vehicle.
func (o *MqttOptions) ToClientConfig() *mqtt.ClientConfig {
	return &mqtt.ClientConfig{
		BrokerURL:          o.Broker,
		ClientID:           o.ClientID,
		Username:           o.Username,
		Password:           o.Password,
		KeepAlive:          uint16(o.KeepAlive / time.Second),
		SessionExpiry:      o.SessionExpiry,
		ConnectTimeout:     o.ConnectTimeout,
		ReconnectBackoff:   o.ReconnectBackoff,
		CleanStart:         o.CleanStart,
		InsecureSkipVerify: o.InsecureSkipVerify,
	}
}
