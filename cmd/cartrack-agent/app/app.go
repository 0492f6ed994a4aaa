package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/cartrack/cmd/cartrack-agent/app/options"
	"github.com/autopeer-io/cartrack/pkg/app"
	"github.com/autopeer-io/cartrack/pkg/log"
)

const (
	commandName = "cartrack-agent"
	commandDesc = `The cartrack agent signs the driver in, follows the vehicle's
location and signals, and uploads location batches for the selected car.
Session and upload state are mirrored to the vehicle bus and served locally.`
)

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	application := app.NewApp(
		commandName,
		"Launch the cartrack telemetry agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
		app.WithCommands(
			newCarsCommand(opts),
			newSelectCarCommand(opts),
			newLanguageCommand(opts),
		),
	)
	return application
}

func run(opts *options.AgentOptions) app.RunFunc {
	return func() error {
		initLog(opts.Log)
		defer log.Sync()

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}

		return agent.Run(ctx)
	}
}
