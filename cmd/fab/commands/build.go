package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/fab/internal/core/domain"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [targets...]",
		Short: "Build the specified targets, or the default target",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specPath, _ := cmd.Flags().GetString("file")

			report, err := c.app.Build(cmd.Context(), specPath, args, buildOptions(cmd))
			if err != nil {
				if report != nil {
					for _, r := range report.Results {
						if r.Outcome == domain.OutcomeFailed {
							_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "fab: target '%s' failed: %s\n", r.Target, r.Reason)
						}
					}
				}
				return err
			}

			rebuilt := 0
			for _, r := range report.Results {
				if r.Outcome == domain.OutcomeRebuilt {
					rebuilt++
				}
			}
			if rebuilt == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "fab: nothing to do, all targets up to date")
			}
			return nil
		},
	}
	addBuildFlags(cmd)
	return cmd
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("jobs", "j", 0, "Number of targets to build in parallel (0 = number of CPUs)")
	cmd.Flags().BoolP("dry-run", "n", false, "Print commands without executing them")
	cmd.Flags().BoolP("force", "B", false, "Rebuild all targets regardless of staleness")
	cmd.Flags().Float64P("max-load", "l", 0, "Do not start new jobs above this load average (0 = unlimited)")
	cmd.Flags().Bool("strict-vars", false, "Fail on references to undefined variables")
}

func buildOptions(cmd *cobra.Command) domain.BuildOptions {
	jobs, _ := cmd.Flags().GetInt("jobs")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	maxLoad, _ := cmd.Flags().GetFloat64("max-load")
	strictVars, _ := cmd.Flags().GetBool("strict-vars")
	return domain.BuildOptions{
		Jobs:       jobs,
		DryRun:     dryRun,
		Force:      force,
		MaxLoad:    maxLoad,
		StrictVars: strictVars,
	}
}
