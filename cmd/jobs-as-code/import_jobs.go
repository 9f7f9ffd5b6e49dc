package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobs-as-code/internal/app"
)

var importCmd = &cobra.Command{
	Use:   "import-jobs",
	Short: "Print existing dbt Cloud jobs as YAML",
	Long: `Import-jobs reads jobs from dbt Cloud and prints them in the YAML format
read by plan and sync.

Either --config or --account-id must be given to select the account.
--job-id, --project-id and --environment-id can be repeated.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

// selectionFlags pick remote jobs for import-jobs, unlink and
// deactivate-jobs.
type selectionFlags struct {
	config         string
	accountID      int
	projectIDs     []int
	environmentIDs []int
	jobIDs         []int
}

var (
	importSel       selectionFlags
	importManaged   bool
	importFilter    string
	importLinkedID  bool
	importTemplates string
)

func init() {
	rootCmd.AddCommand(importCmd)
	registerSelectionFlags(importCmd, &importSel, true)
	importCmd.Flags().BoolVar(&importManaged, "managed-only", false, "only import jobs that have an identifier")
	importCmd.Flags().StringVar(&importFilter, "filter", "", "only import jobs whose import filter is empty, '*' or contains this value")
	importCmd.Flags().BoolVar(&importLinkedID, "include-linked-id", false, "add linked_id with the job id to every job")
	importCmd.Flags().StringVar(&importTemplates, "templated-fields", "", "YAML file of field templates applied to every job")
}

func registerSelectionFlags(cmd *cobra.Command, f *selectionFlags, jobIDs bool) {
	cmd.Flags().StringVar(&f.config, "config", "", "jobs YAML file, directory or glob used to find the account id")
	cmd.Flags().IntVar(&f.accountID, "account-id", 0, "dbt Cloud account id")
	cmd.Flags().IntSliceVarP(&f.projectIDs, "project-id", "p", nil, "only consider jobs of this project (repeatable)")
	cmd.Flags().IntSliceVarP(&f.environmentIDs, "environment-id", "e", nil, "only consider jobs of this environment (repeatable)")
	if jobIDs {
		cmd.Flags().IntSliceVarP(&f.jobIDs, "job-id", "j", nil, "only consider this job id (repeatable)")
	}
}

func (f *selectionFlags) selection() app.Selection {
	sel := app.Selection{
		AccountID:      f.accountID,
		ProjectIDs:     f.projectIDs,
		EnvironmentIDs: f.environmentIDs,
		JobIDs:         f.jobIDs,
	}
	if f.config != "" {
		sel.ConfigPatterns = []string{f.config}
	}
	return sel
}

func runImport(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	jobs, err := s.app.Import(cmd.Context(), app.ImportOptions{
		Selection:       importSel.selection(),
		ManagedOnly:     importManaged,
		Filter:          importFilter,
		IncludeLinkedID: importLinkedID,
		TemplatesPath:   importTemplates,
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	s.logger.Info(cmd.Context(), fmt.Sprintf("exported %d jobs", len(jobs)))
	return nil
}
