// Package app is the command frame shared by cartrack binaries: named flag
// sets, an optional YAML config file, CARTRACK_ environment overrides and
// option validation before the run function.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/component-base/term"
)

// RunFunc is the body of the root command, called with validated options.
type RunFunc func() error

type Option func(*App)

// App is a command line application built around one options struct.
type App struct {
	name        string
	shortDesc   string
	description string

	options  NamedFlagSetOptions
	runFunc  RunFunc
	args     cobra.PositionalArgs
	commands []*cobra.Command

	cfgFile string
	cmd     *cobra.Command
}

func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithDefaultValidArgs rejects positional arguments on the root command.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithCommands adds subcommands. They share the root options, which are
// loaded and validated before any of them runs.
func WithCommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.commands = append(a.commands, cmds...) }
}

func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{name: name, shortDesc: shortDesc}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the root command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the root command and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	if a.runFunc != nil {
		cmd.RunE = func(*cobra.Command, []string) error { return a.runFunc() }
	}

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
		fs := cmd.PersistentFlags()
		for _, f := range namedFlagSets.FlagSets {
			fs.AddFlagSet(f)
		}
		cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
			if err := loadConfig(a.name, a.cfgFile, c.Flags(), a.options); err != nil {
				return err
			}
			if err := a.options.Complete(); err != nil {
				return err
			}
			return a.options.Validate()
		}
	}

	globalFlags := namedFlagSets.FlagSet("global")
	globalFlags.StringVarP(&a.cfgFile, configFlagName, "c", "", "Read configuration from the specified YAML file.")
	globalflag.AddGlobalFlags(globalFlags, a.name)
	cmd.PersistentFlags().AddFlagSet(globalFlags)

	cmd.AddCommand(a.commands...)

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, cols)

	a.cmd = cmd
}
