package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/cartrack/cmd/cartrack-agent/app/options"
	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/auth"
	"github.com/autopeer-io/cartrack/internal/prefs"
	"github.com/autopeer-io/cartrack/internal/session"
	"github.com/autopeer-io/cartrack/pkg/log"
)

var errSignedOut = errors.New("not signed in: configure auth.token-file or auth.refresh-token-file")

// initLog is swapped in tests; log.Init only honours its first call.
var initLog = log.Init

type runE func(cmd *cobra.Command, args []string) error

// withLogging applies the --log.* flags before a subcommand runs.
func withLogging(opts *options.AgentOptions, fn runE) runE {
	return func(cmd *cobra.Command, args []string) error {
		initLog(opts.Log)
		defer func() { _ = log.Sync() }()
		return fn(cmd, args)
	}
}

// backend signs in with the configured credential and returns a client
// acting for the signed-in user.
func backend(ctx context.Context, opts *options.AgentOptions) (*api.Client, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, err
	}
	s := auth.NewSession(cfg.NewTokenSource())
	if err := s.SignIn(ctx); err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			return nil, errSignedOut
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return cfg.NewAPIClient(s), nil
}

func newCarsCommand(opts *options.AgentOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cars",
		Short: "List the cars registered to the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withLogging(opts, func(cmd *cobra.Command, _ []string) error {
			client, err := backend(cmd.Context(), opts)
			if err != nil {
				return err
			}
			user, err := client.Me(cmd.Context())
			if err != nil {
				return err
			}
			store, err := prefs.Open(opts.SessionOptions.PreferencesFile)
			if err != nil {
				return err
			}
			printCars(cmd.OutOrStdout(), user, store.Current().SelectedCarID)
			return nil
		}),
	}
}

func printCars(w io.Writer, user *api.User, selected string) {
	if len(user.Cars) == 0 {
		fmt.Fprintf(w, "No cars registered to %s\n", user.Email)
		return
	}

	table := uitable.New()
	table.AddRow("", "ID", "NAME")
	for _, c := range user.Cars {
		mark := ""
		if c.ID == selected {
			mark = "*"
		}
		table.AddRow(mark, c.ID, c.Name)
	}
	fmt.Fprintln(w, table)
}

func newSelectCarCommand(opts *options.AgentOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select-car <id>",
		Short: "Select the car whose locations are uploaded",
		Args:  cobra.ExactArgs(1),
		RunE: withLogging(opts, func(cmd *cobra.Command, args []string) error {
			id := args[0]
			client, err := backend(cmd.Context(), opts)
			if err != nil {
				return err
			}
			user, err := client.Me(cmd.Context())
			if err != nil {
				return err
			}
			if !slices.ContainsFunc(user.Cars, func(c api.Car) bool { return c.ID == id }) {
				return fmt.Errorf("%w: %s", session.ErrUnknownCar, id)
			}

			store, err := prefs.Open(opts.SessionOptions.PreferencesFile)
			if err != nil {
				return err
			}
			if err := store.SelectCar(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected car %s\n", id)
			return nil
		}),
	}
}

func newLanguageCommand(opts *options.AgentOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "language <code>",
		Short: "Set the display language",
		Args:  cobra.ExactArgs(1),
		RunE: withLogging(opts, func(cmd *cobra.Command, args []string) error {
			code := args[0]
			cfg, err := opts.Config()
			if err != nil {
				return err
			}
			conf, err := cfg.NewAPIClient(auth.NewSession(auth.Anonymous{})).Conf(cmd.Context())
			if err != nil {
				return err
			}
			if _, ok := conf.Find(code); !ok {
				return fmt.Errorf("unknown language %q, available: %s", code, languageCodes(conf))
			}

			store, err := prefs.Open(opts.SessionOptions.PreferencesFile)
			if err != nil {
				return err
			}
			if err := store.SetLanguage(code); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Language set to %s\n", code)
			return nil
		}),
	}
}

func languageCodes(conf *api.Conf) string {
	codes := make([]string, 0, len(conf.Languages))
	for _, l := range conf.Languages {
		codes = append(codes, l.Code)
	}
	return strings.Join(codes, ", ")
}
