package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobs-as-code/internal/adapters/render"
	"github.com/felixgeelhaar/jobs-as-code/internal/app"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
)

var planCmd = &cobra.Command{
	Use:   "plan CONFIG",
	Short: "Show the changes needed to match the YAML files",
	Long: `Plan compares the jobs defined in CONFIG with the managed jobs in dbt Cloud
and lists the creates, updates and deletes that sync would apply.

CONFIG is a file, a directory or a glob pattern of YAML files.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

// planFlags are shared by plan and sync.
type planFlags struct {
	projectIDs     []int
	environmentIDs []int
	limitToYAML    bool
	varsFiles      []string
	json           bool
}

var planOpts planFlags

func init() {
	rootCmd.AddCommand(planCmd)
	registerPlanFlags(planCmd, &planOpts)
}

func registerPlanFlags(cmd *cobra.Command, f *planFlags) {
	cmd.Flags().IntSliceVarP(&f.projectIDs, "project-id", "p", nil, "only consider jobs of this project (repeatable)")
	cmd.Flags().IntSliceVarP(&f.environmentIDs, "environment-id", "e", nil, "only consider jobs of this environment (repeatable)")
	cmd.Flags().BoolVarP(&f.limitToYAML, "limit-projects-envs-to-yml", "l", false, "only consider the projects and environments of the YAML files")
	cmd.Flags().StringSliceVarP(&f.varsFiles, "vars-yml", "v", nil, "variables file for templated YAML (file, directory or glob)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the change set as JSON")
}

func (f *planFlags) options(configPattern string) app.PlanOptions {
	return app.PlanOptions{
		ConfigPatterns: []string{configPattern},
		VarsPatterns:   f.varsFiles,
		ProjectIDs:     f.projectIDs,
		EnvironmentIDs: f.environmentIDs,
		LimitToYAML:    f.limitToYAML,
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cs, err := s.app.Plan(cmd.Context(), planOpts.options(args[0]))
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}
	return printReport(cmd.OutOrStdout(), cs.Report(), planOpts.json)
}

func printReport(w io.Writer, r changeset.Report, asJSON bool) error {
	if asJSON {
		return render.JSON(w, r)
	}
	for _, warning := range r.Warnings {
		_, _ = fmt.Fprintf(w, "Warning: %s\n", warning.Message)
		for _, u := range warning.URLs {
			_, _ = fmt.Fprintf(w, "  %s\n", u)
		}
	}
	if r.Empty() {
		_, _ = fmt.Fprintln(w, "No changes detected.")
		return nil
	}
	return render.Table(w, r)
}
