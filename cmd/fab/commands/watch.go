package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [targets...]",
		Short: "Build the targets, then rebuild whenever a file changes",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specPath, _ := cmd.Flags().GetString("file")
			return c.app.Watch(cmd.Context(), specPath, args, buildOptions(cmd))
		},
	}
	addBuildFlags(cmd)
	return cmd
}
