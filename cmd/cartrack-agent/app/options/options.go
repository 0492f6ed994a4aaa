package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/cartrack/internal/agent"
	"github.com/autopeer-io/cartrack/pkg/app"
	"github.com/autopeer-io/cartrack/pkg/log"
	"github.com/autopeer-io/cartrack/pkg/options"
)

type AgentOptions struct {
	ApiOptions       *options.ApiOptions       `json:"api" mapstructure:"api"`
	AuthOptions      *options.AuthOptions      `json:"auth" mapstructure:"auth"`
	MqttOptions      *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	S3Options        *options.S3Options        `json:"s3" mapstructure:"s3"`
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	SessionOptions   *options.SessionOptions   `json:"session" mapstructure:"session"`
	TelemetryOptions *options.TelemetryOptions `json:"telemetry" mapstructure:"telemetry"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*AgentOptions)(nil)

func NewAgentOptions() *AgentOptions {
	o := &AgentOptions{
		ApiOptions:       options.NewApiOptions(),
		AuthOptions:      options.NewAuthOptions(),
		MqttOptions:      options.NewMqttOptions(),
		S3Options:        options.NewS3Options(),
		HttpOptions:      options.NewHttpOptions(),
		SessionOptions:   options.NewSessionOptions(),
		TelemetryOptions: options.NewTelemetryOptions(),
		Log:              log.NewOptions(),
	}

	return o
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.ApiOptions.AddFlags(fss.FlagSet("api"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.SessionOptions.AddFlags(fss.FlagSet("session"))
	o.TelemetryOptions.AddFlags(fss.FlagSet("telemetry"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *AgentOptions) Complete() error {
	if o.Log.Name == "" {
		o.Log.Name = "cartrack-agent"
	}
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.ApiOptions.Validate()...)
	errs = append(errs, o.AuthOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.SessionOptions.Validate()...)
	errs = append(errs, o.TelemetryOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) Config() (*agent.Config, error) {
	return &agent.Config{
		ApiOptions:       o.ApiOptions,
		AuthOptions:      o.AuthOptions,
		MqttOptions:      o.MqttOptions,
		S3Options:        o.S3Options,
		HttpOptions:      o.HttpOptions,
		SessionOptions:   o.SessionOptions,
		TelemetryOptions: o.TelemetryOptions,
	}, nil
}
