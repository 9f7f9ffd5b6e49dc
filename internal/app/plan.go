package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/execution"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// ErrSyncDeclined is returned by Sync when the confirmation is refused.
var ErrSyncDeclined = errors.New("sync declined")

// PlanOptions selects the desired jobs and the remote scope.
type PlanOptions struct {
	ConfigPatterns []string
	VarsPatterns   []string
	ProjectIDs     []int
	EnvironmentIDs []int
	// LimitToYAML restricts the remote listing to the projects and
	// environments found in the jobs files.
	LimitToYAML bool
}

// SyncOptions extends PlanOptions with how the changes are applied.
type SyncOptions struct {
	PlanOptions
	FailFast    bool
	Parallelism int
	// Confirm is asked before applying a non-empty change set. Nil applies
	// without asking.
	Confirm func(changeset.Report) (bool, error)
}

// Plan computes the changes that would reconcile the remote jobs with the
// jobs files.
func (a *App) Plan(ctx context.Context, opts PlanOptions) (*changeset.ChangeSet, error) {
	cs, api, err := a.plan(ctx, opts)
	if api != nil {
		resetCache(api)
	}
	return cs, err
}

// Sync plans and applies the changes. The returned change set carries the
// per-change outcomes; a failed remote call clears its ApplySuccess without
// returning an error.
func (a *App) Sync(ctx context.Context, opts SyncOptions) (*changeset.ChangeSet, error) {
	cs, api, err := a.plan(ctx, opts.PlanOptions)
	if err != nil {
		return nil, err
	}
	if api == nil || cs.Empty() {
		return cs, nil
	}
	defer resetCache(api)

	if opts.Confirm != nil {
		ok, err := opts.Confirm(cs.Report())
		if err != nil {
			return cs, fmt.Errorf("failed to confirm: %w", err)
		}
		if !ok {
			return cs, ErrSyncDeclined
		}
	}

	execOpts := []execution.ExecutorOption{execution.WithLogger(a.logger)}
	if a.recorder != nil {
		execOpts = append(execOpts, execution.WithRecorder(a.recorder))
	}
	executor := execution.NewExecutor(api, execOpts...)
	if err := executor.Apply(ctx, cs, execution.Options{
		FailFast:    opts.FailFast,
		Parallelism: opts.Parallelism,
	}); err != nil {
		return cs, fmt.Errorf("failed to apply: %w", err)
	}
	return cs, nil
}

func (a *App) plan(ctx context.Context, opts PlanOptions) (*changeset.ChangeSet, ports.JobsAPI, error) {
	if opts.LimitToYAML && (len(opts.ProjectIDs) > 0 || len(opts.EnvironmentIDs) > 0) {
		return nil, nil, config.NewUserError(config.ErrCodeInvalidFlags,
			"--limit-projects-envs-to-yml cannot be combined with project or environment ids")
	}

	res, err := a.load(ctx, opts.ConfigPatterns, opts.VarsPatterns)
	if err != nil {
		return nil, nil, err
	}

	var warnings []changeset.Warning

	scope := config.Scope{ProjectIDs: opts.ProjectIDs, EnvironmentIDs: opts.EnvironmentIDs}
	desired, removed := config.FilterJobs(res.Jobs, scope)
	for _, id := range removed {
		w := changeset.Warning{
			Code:       changeset.WarnJobFiltered,
			Identifier: id,
			Message:    fmt.Sprintf("job %s is outside the selected projects and environments and is ignored", id),
		}
		a.logger.Warn(ctx, w.Message, ports.F("identifier", id))
		warnings = append(warnings, w)
	}

	if len(desired) == 0 {
		none := changeset.Warning{Code: changeset.WarnNoJobs, Message: "no jobs to reconcile"}
		a.logger.Warn(ctx, none.Message)
		cs := changeset.New()
		for _, w := range append(warnings, none) {
			cs.Warn(w)
		}
		return cs, nil, nil
	}

	api, accounts, err := a.client(ctx, desired)
	if err != nil {
		return nil, nil, err
	}
	if len(accounts) > 1 {
		warnings = append(warnings, changeset.Warning{
			Code:    changeset.WarnMultipleAccounts,
			Message: fmt.Sprintf("jobs reference several accounts %v; only account %d is reconciled", accounts, accounts[0]),
		})
	}

	if opts.LimitToYAML {
		scope = config.ScopeOf(desired)
	}
	remote, err := api.ListJobs(ctx, ports.JobFilter{
		ProjectIDs:     scope.ProjectIDs,
		EnvironmentIDs: scope.EnvironmentIDs,
	})
	if err != nil {
		return nil, api, fmt.Errorf("failed to list remote jobs: %w", err)
	}
	a.logger.Debug(ctx, "remote jobs listed", ports.F("count", len(remote)))

	builder := changeset.NewBuilder(api,
		changeset.WithLogger(a.logger),
		changeset.WithBaseURL(a.baseURL),
	)
	cs, err := builder.Build(ctx, desired, remote)
	if err != nil {
		return nil, api, fmt.Errorf("failed to plan: %w", err)
	}
	for _, w := range warnings {
		cs.Warn(w)
	}
	a.logger.Info(ctx, "plan computed",
		ports.F("run_id", cs.RunID),
		ports.F("changes", cs.Len()),
		ports.F("warnings", len(cs.Warnings)),
	)
	return cs, api, nil
}
