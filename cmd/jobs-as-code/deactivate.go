package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deactivateCmd = &cobra.Command{
	Use:   "deactivate-jobs",
	Short: "Turn off the triggers of dbt Cloud jobs",
	Long: `Deactivate-jobs disables the schedule, webhook and merge triggers of the
selected jobs without deleting them, e.g. after moving jobs to a new project.

Either --config or --account-id must be given.`,
	Args: cobra.NoArgs,
	RunE: runDeactivate,
}

var deactivateSel selectionFlags

func init() {
	rootCmd.AddCommand(deactivateCmd)
	registerSelectionFlags(deactivateCmd, &deactivateSel, true)
}

func runDeactivate(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	jobs, err := s.app.Deactivate(cmd.Context(), deactivateSel.selection())
	if err != nil {
		return fmt.Errorf("deactivate failed: %w", err)
	}
	for _, j := range jobs {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", j.String())
	}
	return nil
}
