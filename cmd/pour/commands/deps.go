package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/pour/internal/core/domain"
)

func (c *CLI) newDepsCmd() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "deps <formula.yaml>",
		Short: "List the resolved dependencies of a formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scopes domain.Scopes
			if len(tags) > 0 {
				parsed, err := domain.ParseScopes(tags)
				if err != nil {
					return err
				}
				scopes = parsed
			}

			deps, err := c.app.Deps(args[0], scopes)
			if err != nil {
				return err
			}

			for _, d := range deps {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", d.Name, d.Scopes)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tags, "scope", nil, "Only list dependencies needed in this scope (build, test, runtime, optional)")

	return cmd
}
