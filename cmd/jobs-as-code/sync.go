package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobs-as-code/internal/app"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
)

var syncCmd = &cobra.Command{
	Use:   "sync CONFIG",
	Short: "Apply the changes needed to match the YAML files",
	Long: `Sync computes the same change set as plan and applies it to dbt Cloud.

Failed changes are reported and the command exits with status 1; with
--fail-fast the first failure stops the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

var (
	syncOpts        planFlags
	syncFailFast    bool
	syncYes         bool
	syncParallelism int
)

// confirmSync asks before applying; tests replace it.
var confirmSync = func(cmd *cobra.Command, r changeset.Report) (bool, error) {
	return tuiConfirm(cmd, r)
}

func init() {
	rootCmd.AddCommand(syncCmd)
	registerPlanFlags(syncCmd, &syncOpts)
	syncCmd.Flags().BoolVar(&syncFailFast, "fail-fast", false, "stop at the first failed change")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "apply without asking for confirmation")
	syncCmd.Flags().IntVar(&syncParallelism, "parallelism", 0, "number of jobs applied concurrently (default from settings)")
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	opts := app.SyncOptions{
		PlanOptions: syncOpts.options(args[0]),
		FailFast:    syncFailFast || s.settings.Apply.FailFast,
		Parallelism: s.settings.Apply.Parallelism,
	}
	if syncParallelism > 0 {
		opts.Parallelism = syncParallelism
	}
	if !syncYes {
		opts.Confirm = func(r changeset.Report) (bool, error) {
			return confirmSync(cmd, r)
		}
	}

	cs, err := s.app.Sync(cmd.Context(), opts)
	if errors.Is(err, app.ErrSyncDeclined) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Sync cancelled.")
		return nil
	}
	if cs != nil && !cs.Empty() {
		s.recorder.RecordRun(err == nil && cs.ApplySuccess())
		s.flush(cmd)
	}
	if err != nil {
		// An aborted apply may have changed some jobs already.
		if cs != nil && !cs.Empty() {
			_ = printReport(cmd.OutOrStdout(), cs.Report(), syncOpts.json)
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	if err := printReport(cmd.OutOrStdout(), cs.Report(), syncOpts.json); err != nil {
		return err
	}
	if !cs.ApplySuccess() {
		return errApplyFailed
	}
	return nil
}
