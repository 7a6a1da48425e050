// Package output creates termenv outputs and lipgloss renderers with a
// consistent color profile.
package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ColorProfile returns the profile for the current environment.
// NO_COLOR forces plain ASCII output.
func ColorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// New creates a termenv.Output for w. A nil writer means stderr.
func New(w io.Writer, opts ...termenv.OutputOption) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}

	opts = append(opts,
		termenv.WithProfile(ColorProfile()),
		termenv.WithTTY(true),
	)

	return termenv.NewOutput(w, opts...)
}

// NewRenderer creates a lipgloss renderer writing to w with the profile
// from ColorProfile. A nil writer means stderr.
func NewRenderer(w io.Writer) *lipgloss.Renderer {
	out := New(w)
	r := lipgloss.NewRenderer(out)
	r.SetOutput(out)
	r.SetColorProfile(ColorProfile())
	return r
}
