package agent

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/internal/agent/core"
	"github.com/autopeer-io/cartrack/internal/agent/hal"
	"github.com/autopeer-io/cartrack/internal/agent/hub"
	"github.com/autopeer-io/cartrack/internal/agent/ingest"
	"github.com/autopeer-io/cartrack/internal/agent/mirror"
	"github.com/autopeer-io/cartrack/internal/agent/server"
	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/archive"
	"github.com/autopeer-io/cartrack/internal/auth"
	"github.com/autopeer-io/cartrack/internal/prefs"
	"github.com/autopeer-io/cartrack/internal/session"
	"github.com/autopeer-io/cartrack/internal/telemetry"
	"github.com/autopeer-io/cartrack/internal/uploader"
	"github.com/autopeer-io/cartrack/pkg/log"
	"github.com/autopeer-io/cartrack/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/cartrack/pkg/mqtt/topic"
	"github.com/autopeer-io/cartrack/pkg/options"
)

type Config struct {
	ApiOptions       *options.ApiOptions
	AuthOptions      *options.AuthOptions
	MqttOptions      *options.MqttOptions
	S3Options        *options.S3Options
	HttpOptions      *options.HttpOptions
	SessionOptions   *options.SessionOptions
	TelemetryOptions *options.TelemetryOptions
}

// NewAgent wires every component. Nothing is started until Agent.Run.
func (cfg *Config) NewAgent() (*Agent, error) {
	clk := clock.RealClock{}
	vid := hal.DiscoverVehicleID(cfg.TelemetryOptions.VehicleID)

	authSession := auth.NewSession(cfg.NewTokenSource())
	client := cfg.NewAPIClient(authSession)

	store, err := prefs.Open(cfg.SessionOptions.PreferencesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	sessions := session.NewService(client, authSession, store, session.Config{
		RetryInterval:   cfg.SessionOptions.RetryInterval,
		DefaultLanguage: cfg.SessionOptions.DefaultLanguage,
		Clock:           clk,
	})

	source := telemetry.NewSource(clk)

	a := &Agent{
		vehicleID:   vid,
		clock:       clk,
		signInRetry: cfg.AuthOptions.RetryInterval,
		auth:        authSession,
		client:      client,
		prefs:       store,
		session:     sessions,
		telemetry:   source,
	}

	uploadOpts := []uploader.Option{uploader.WithClock(clk)}
	if cfg.S3Options.Enabled {
		a.archive, err = archive.NewMinIO(cfg.S3Options, clk)
		if err != nil {
			return nil, err
		}
		uploadOpts = append(uploadOpts, uploader.WithArchiver(a.archive))
	}
	a.uploader = uploader.New(authSession, source, sessions, client, uploadOpts...)

	if cfg.MqttOptions.Enabled {
		mqttClient, topicBuilder, err := cfg.initMqttClientAndTopicBuilder(vid)
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		a.hub = hub.New(vid, mqttClient, topicBuilder)
		a.modules = []core.Module{
			ingest.New(source),
			mirror.New(vid, sessions, a.uploader, mirror.WithClock(clk)),
		}
	}

	if cfg.TelemetryOptions.Simulate {
		a.simulator = hal.NewSimulator(source, cfg.TelemetryOptions.SimulateInterval, hal.WithSimulatorClock(clk))
	}

	if cfg.HttpOptions.Enabled {
		a.server = server.NewServer(cfg.HttpOptions, sessions, a.uploader)
	}

	return a, nil
}

// NewTokenSource picks the identity token source: a token file kept fresh
// by an external helper, an OAuth refresh token, or none.
func (cfg *Config) NewTokenSource() auth.TokenSource {
	o := cfg.AuthOptions
	switch {
	case o.TokenFile != "":
		return &auth.FileSource{Path: o.TokenFile}
	case o.RefreshTokenFile != "":
		return &auth.RefreshSource{
			Config: &oauth2.Config{
				ClientID:     o.ClientID,
				ClientSecret: o.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  o.AuthURL,
					TokenURL: o.TokenURL,
				},
				Scopes: []string{"openid", "email", "profile"},
			},
			RefreshTokenFile: o.RefreshTokenFile,
		}
	default:
		log.Warn("No credential configured, the agent stays signed out")
		return auth.Anonymous{}
	}
}

func (cfg *Config) NewAPIClient(tokens api.TokenSource) *api.Client {
	return api.NewClient(api.Config{
		BaseURL:   cfg.ApiOptions.BaseURL,
		Timeout:   cfg.ApiOptions.Timeout,
		UserAgent: cfg.ApiOptions.UserAgent,
		MediaType: cfg.ApiOptions.MediaType,
	}, tokens)
}

func (cfg *Config) initMqttClientAndTopicBuilder(vid string) (mqtt.Client, *mqtttopic.TopicBuilder, error) {
	topicBuilder := mqtttopic.NewTopicBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("cartrack-agent-%s", vid)
	}

	// No timestamp in the payload: the will may be delivered long after it was set.
	offlinePayload, err := json.Marshal(core.Presence{
		VehicleID: vid,
		Online:    false,
		Reason:    "UnexpectedDisconnect",
	})
	if err != nil {
		return nil, nil, err
	}

	mqttConfig.WillTopic = topicBuilder.Presence(vid)
	mqttConfig.WillPayload = offlinePayload
	mqttConfig.WillQoS = 1
	mqttConfig.WillRetain = true

	mqttClient, err := mqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, nil, err
	}

	return mqttClient, topicBuilder, nil
}
