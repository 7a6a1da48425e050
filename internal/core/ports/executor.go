// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/pour/internal/core/domain"
)

// Process is a spawned external command.
type Process interface {
	// Wait blocks until the command exits. A non-zero exit is reported as an error.
	Wait() error

	// ExitCode returns the exit code after Wait returns, or -1 if the process
	// did not exit normally.
	ExitCode() int
}

// ProcessSpawner starts external commands.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type ProcessSpawner interface {
	// Spawn starts cmd with its output streamed to stdout and stderr.
	Spawn(ctx context.Context, cmd domain.Command, stdout, stderr io.Writer) (Process, error)
}
