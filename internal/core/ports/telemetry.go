package ports

import (
	"context"
	"io"
	"time"

	"go.trai.ch/pour/internal/core/domain"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Telemetry records progress of install steps.
type Telemetry interface {
	// Record starts a new vertex for a unit of work.
	Record(ctx context.Context, name string) (context.Context, Vertex)
	// Summary reports what has been recorded so far.
	Summary() Summary
	// Close flushes the recording session.
	Close() error
}

// Summary describes a recording session.
type Summary struct {
	Completed int
	Cached    int
	Errored   int
	Duration  time.Duration
	// Failures holds the captured output of failed vertices, in start order.
	Failures []Failure
}

// Failure is the tail of the output written by a failed vertex.
type Failure struct {
	Name   string
	Output string
}

// Vertex represents one recorded unit of work.
type Vertex interface {
	// Stdout returns a writer for the step's standard output.
	Stdout() io.Writer
	// Stderr returns a writer for the step's error output.
	Stderr() io.Writer
	// Log records a message against the vertex.
	Log(level domain.LogLevel, msg string)
	// Complete marks the vertex finished; err is nil on success.
	Complete(err error)
	// Cached marks the vertex as satisfied without doing work.
	Cached()
}

type vertexKey struct{}

// ContextWithVertex returns a child context carrying v.
func ContextWithVertex(ctx context.Context, v Vertex) context.Context {
	return context.WithValue(ctx, vertexKey{}, v)
}

// VertexFromContext returns the vertex stored in ctx, if any.
func VertexFromContext(ctx context.Context) (Vertex, bool) {
	v, ok := ctx.Value(vertexKey{}).(Vertex)
	return v, ok
}
