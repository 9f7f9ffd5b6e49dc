package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobs-as-code/internal/app"
)

var unlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Stop managing dbt Cloud jobs",
	Long: `Unlink removes [[identifier]] from the name of managed dbt Cloud jobs.

Either --config or --account-id must be given. With --config only the
identifiers defined in those files are unlinked.`,
	Args: cobra.NoArgs,
	RunE: runUnlink,
}

var (
	unlinkSel         selectionFlags
	unlinkIdentifiers []string
	unlinkDryRun      bool
)

func init() {
	rootCmd.AddCommand(unlinkCmd)
	registerSelectionFlags(unlinkCmd, &unlinkSel, false)
	unlinkCmd.Flags().StringSliceVarP(&unlinkIdentifiers, "identifier", "i", nil, "only unlink this identifier (repeatable)")
	unlinkCmd.Flags().BoolVar(&unlinkDryRun, "dry-run", false, "show what would be unlinked without updating dbt Cloud")
}

func runUnlink(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	jobs, err := s.app.Unlink(cmd.Context(), app.UnlinkOptions{
		Selection:   unlinkSel.selection(),
		Identifiers: unlinkIdentifiers,
		DryRun:      unlinkDryRun,
	})
	if err != nil {
		return fmt.Errorf("unlink failed: %w", err)
	}

	verb := "Unlinked"
	if unlinkDryRun {
		verb = "Would unlink"
	}
	for _, j := range jobs {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, j.String())
	}
	return nil
}
