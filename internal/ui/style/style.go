// Package style holds the colors, icons and text styles shared by pour's
// terminal output.
package style

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/pour/internal/ui/output"
)

// Palette.
var (
	Amber  = lipgloss.Color("#D97706")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Arrow   = "→"
	Dot     = "●"
)

// Styles are the text styles bound to one renderer.
type Styles struct {
	Success lipgloss.Style
	Failure lipgloss.Style
	Warn    lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
}

// New creates the styles for r.
func New(r *lipgloss.Renderer) Styles {
	return Styles{
		Success: r.NewStyle().Foreground(Green),
		Failure: r.NewStyle().Foreground(Red),
		Warn:    r.NewStyle().Foreground(Yellow),
		Muted:   r.NewStyle().Foreground(Slate),
		Accent:  r.NewStyle().Foreground(Amber).Bold(true),
	}
}

// For creates the styles for w.
func For(w io.Writer) Styles {
	return New(output.NewRenderer(w))
}

// Lines renders each line of text on its own so multi-line text is not
// padded to a common width.
func Lines(s lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = s.Render(line)
	}
	return strings.Join(lines, "\n")
}
