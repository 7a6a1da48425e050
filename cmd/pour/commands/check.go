package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/pour/internal/ui/style"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	var fetch bool

	cmd := &cobra.Command{
		Use:   "check <formula.yaml>...",
		Short: "Validate formulas without installing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := c.app.Check(cmd.Context(), args, fetch)

			w := cmd.OutOrStdout()
			st := style.For(w)
			for _, r := range results {
				if r.Err != nil {
					_, _ = fmt.Fprintf(w, "%s %s: %v\n", st.Failure.Render(style.Cross), r.Path, r.Err)
					continue
				}
				if r.Name == "" {
					continue
				}
				_, _ = fmt.Fprintf(w, "%s %s (%s)\n", st.Success.Render(style.Check), r.Path, r.Name)
			}

			return err
		},
	}

	cmd.Flags().BoolVar(&fetch, "fetch", false, "Also download each archive and verify its checksum")

	return cmd
}
