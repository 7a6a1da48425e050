// Package main is the entry point for the pour package installer.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/pour/cmd/pour/commands"
	"go.trai.ch/pour/internal/app"
	"go.trai.ch/pour/internal/core/domain"
	_ "go.trai.ch/pour/internal/wiring"
)

type jsonSetter interface {
	SetJSON(enable bool)
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = components.Telemetry.Close() }()

	if l, ok := components.Logger.(jsonSetter); ok && components.Settings.Log.JSON {
		l.SetJSON(true)
	}

	cli := commands.New(components.App, components.Telemetry)

	if err := cli.Execute(ctx); err != nil {
		components.Logger.Error(err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps a failed subprocess to its own exit code and everything else to 1.
func exitCode(err error) int {
	var stepErr *domain.StepError
	if errors.As(err, &stepErr) && stepErr.ExitCode > 0 {
		return stepErr.ExitCode
	}
	return 1
}
