// Package commands implements the CLI commands for pour.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/pour/internal/app"
	"go.trai.ch/pour/internal/build"
	"go.trai.ch/pour/internal/core/ports"
)

// CLI represents the command line interface for pour.
type CLI struct {
	app       *app.App
	telemetry ports.Telemetry
	rootCmd   *cobra.Command
}

// New creates a new CLI instance with the given app. Install summaries are
// read from tel.
func New(a *app.App, tel ports.Telemetry) *CLI {
	rootCmd := &cobra.Command{
		Use:           "pour",
		Short:         "Build and install packages from formula files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:       a,
		telemetry: tel,
		rootCmd:   rootCmd,
	}

	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newDepsCmd())
	rootCmd.AddCommand(c.newInfoCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOut redirects command output. Used for testing.
func (c *CLI) SetOut(w io.Writer) {
	c.rootCmd.SetOut(w)
}

// SetErr redirects command error output. Used for testing.
func (c *CLI) SetErr(w io.Writer) {
	c.rootCmd.SetErr(w)
}
