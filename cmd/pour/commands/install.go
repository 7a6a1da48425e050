package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/pour/internal/app"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/pour/internal/ui/style"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	var opts app.InstallOptions

	cmd := &cobra.Command{
		Use:   "install <formula.yaml>",
		Short: "Fetch, verify, build and install a formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.app.Install(cmd.Context(), args[0], opts)
			summary := c.telemetry.Summary()
			if err != nil {
				printFailures(cmd.ErrOrStderr(), summary)
				return err
			}

			w := cmd.OutOrStdout()
			st := style.For(w)
			mark := st.Success.Render(style.Check)
			r := result.Receipt
			if result.Cached {
				_, _ = fmt.Fprintf(w, "%s %s %s already installed in %s\n", mark, r.Name, r.Version, r.Prefix)
			} else {
				_, _ = fmt.Fprintf(w, "%s %s %s installed in %s\n", mark, r.Name, r.Version, r.Prefix)
			}
			printSummary(w, st, summary)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Prefix, "prefix", "", "Install prefix (default: <cellar>/<name>/<version>)")
	f.StringVar(&opts.WorkDir, "work-dir", "", "Directory to unpack and build in")
	f.IntVarP(&opts.Jobs, "jobs", "j", 0, "Parallel make jobs (default: from settings)")
	f.BoolVarP(&opts.Force, "force", "f", false, "Rebuild even if an up-to-date install receipt exists")
	f.BoolVar(&opts.KeepWork, "keep-work", false, "Keep the build directory after a successful install")
	f.StringArrayVar(&opts.CMakeArgs, "cmake-arg", nil, "Extra argument passed to cmake (repeatable)")

	return cmd
}

// printSummary writes one muted line with the recorded step counts.
func printSummary(w io.Writer, st style.Styles, s ports.Summary) {
	if s.Completed == 0 {
		return
	}
	line := fmt.Sprintf("  %d steps, %d cached, %s", s.Completed, s.Cached, s.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintln(w, st.Muted.Render(line))
}

// printFailures replays the last output of every failed step.
func printFailures(w io.Writer, s ports.Summary) {
	if len(s.Failures) == 0 {
		return
	}
	st := style.For(w)
	for _, f := range s.Failures {
		_, _ = fmt.Fprintf(w, "%s %s failed, last output:\n", st.Failure.Render(style.Cross), f.Name)
		for _, line := range strings.Split(f.Output, "\n") {
			_, _ = fmt.Fprintln(w, st.Muted.Render("    "+line))
		}
	}
}
