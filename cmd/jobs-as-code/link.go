package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobs-as-code/internal/app"
)

var linkCmd = &cobra.Command{
	Use:   "link CONFIG",
	Short: "Adopt existing dbt Cloud jobs",
	Long: `Link appends [[identifier]] to the name of the dbt Cloud job referenced
by the linked_id of each job in CONFIG, so sync manages it from then on.

Jobs that do not exist or already carry an identifier are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

var (
	linkProjectIDs     []int
	linkEnvironmentIDs []int
	linkDryRun         bool
)

func init() {
	rootCmd.AddCommand(linkCmd)
	linkCmd.Flags().IntSliceVarP(&linkProjectIDs, "project-id", "p", nil, "only link jobs of this project (repeatable)")
	linkCmd.Flags().IntSliceVarP(&linkEnvironmentIDs, "environment-id", "e", nil, "only link jobs of this environment (repeatable)")
	linkCmd.Flags().BoolVar(&linkDryRun, "dry-run", false, "show what would be linked without updating dbt Cloud")
}

func runLink(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	res, err := s.app.Link(cmd.Context(), app.LinkOptions{
		ConfigPatterns: []string{args[0]},
		ProjectIDs:     linkProjectIDs,
		EnvironmentIDs: linkEnvironmentIDs,
		DryRun:         linkDryRun,
	})
	if err != nil {
		return fmt.Errorf("link failed: %w", err)
	}

	out := cmd.OutOrStdout()
	verb := "Linked"
	if linkDryRun {
		verb = "Would link"
	}
	for _, j := range res.Linked {
		_, _ = fmt.Fprintf(out, "%s %s [[%s]]\n", verb, j.String(), j.Identifier)
	}
	for _, reason := range res.Skipped {
		_, _ = fmt.Fprintf(out, "Skipped: %s\n", reason)
	}
	return nil
}
