// Package progrock provides the Progrock implementation of the telemetry adapter.
package progrock

import (
	"bytes"
	"context"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"github.com/vito/progrock/ui"
	"go.trai.ch/pour/internal/core/ports"
)

var _ ports.Telemetry = (*Recorder)(nil)

// failureLines is how much of a failed vertex's output Summary keeps.
const failureLines = 20

// Recorder implements the ports.Telemetry interface using the progrock library.
type Recorder struct {
	w    progrock.Writer
	rec  *progrock.Recorder
	tape *progrock.Tape
}

// New creates a new Recorder with a default tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a new Recorder with the given writer.
// Summary is only populated when w is a *progrock.Tape.
func NewRecorder(w progrock.Writer) *Recorder {
	tape, _ := w.(*progrock.Tape)
	return &Recorder{
		w:    w,
		rec:  progrock.NewRecorder(w),
		tape: tape,
	}
}

// Record starts recording a new vertex.
// A vertex already present in ctx becomes the parent, so step vertices are keyed under their package.
func (r *Recorder) Record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	key := name
	if parent, ok := ports.VertexFromContext(ctx); ok {
		if pv, ok := parent.(*Vertex); ok {
			key = pv.key + "/" + name
		}
	}

	v := r.rec.Vertex(digest.FromString(key), name)
	vertex := &Vertex{vertex: v, key: key}
	return ports.ContextWithVertex(ctx, vertex), vertex
}

// Summary reads the vertex counts and the output of failed vertices back from the tape.
func (r *Recorder) Summary() ports.Summary {
	if r.tape == nil {
		return ports.Summary{}
	}

	s := ports.Summary{
		Completed: r.tape.CompletedCount(),
		Cached:    r.tape.CachedCount(),
		Errored:   r.tape.ErroredCount(),
		Duration:  r.tape.Duration(),
	}
	if s.Errored == 0 {
		return s
	}

	output := make(map[string]string)
	_ = r.tape.EachVertex(func(v *progrock.Vertex, term *ui.Vterm) error {
		if v.Error == nil {
			return nil
		}
		var buf bytes.Buffer
		if err := term.Print(&buf); err != nil {
			return err
		}
		output[v.Id] = tail(buf.String(), failureLines)
		return nil
	})

	for _, v := range r.tape.Vertices() {
		if out := output[v.Id]; out != "" {
			s.Failures = append(s.Failures, ports.Failure{Name: v.Name, Output: out})
		}
	}
	return s
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// tail returns the last n lines of s, ignoring trailing blank lines.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, " \n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
