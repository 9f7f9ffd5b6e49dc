package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// LinkOptions controls Link.
type LinkOptions struct {
	ConfigPatterns []string
	ProjectIDs     []int
	EnvironmentIDs []int
	DryRun         bool
}

// LinkResult lists the renamed jobs and the reasons other jobs were skipped.
type LinkResult struct {
	Linked  []*job.Job
	Skipped []string
}

// Link adopts existing remote jobs: every job of the jobs files that carries
// a linked_id gets its identifier appended to the remote job name. Remote
// jobs that are missing or already managed are skipped.
func (a *App) Link(ctx context.Context, opts LinkOptions) (*LinkResult, error) {
	res, err := a.load(ctx, opts.ConfigPatterns, nil)
	if err != nil {
		return nil, err
	}
	api, _, err := a.client(ctx, res.Jobs)
	if err != nil {
		return nil, err
	}

	scope := config.Scope{ProjectIDs: opts.ProjectIDs, EnvironmentIDs: opts.EnvironmentIDs}
	result := &LinkResult{}
	for _, id := range res.Identifiers() {
		want := res.Jobs[id]
		if !scope.Contains(want) {
			continue
		}
		remote, reason, err := a.linkable(ctx, api, id, want)
		if err != nil {
			return result, err
		}
		if reason != "" {
			a.logger.Error(ctx, reason, ports.F("identifier", id))
			result.Skipped = append(result.Skipped, reason)
			continue
		}

		remote.Identifier = id
		fields := []ports.Field{ports.F("job", remote.String()), ports.F("identifier", id)}
		if opts.DryRun {
			a.logger.Info(ctx, "would link job", fields...)
		} else {
			a.logger.Info(ctx, "linking job", fields...)
			if _, err := api.UpdateJob(ctx, remote); err != nil {
				return result, fmt.Errorf("failed to link job %d: %w", remote.RemoteID(), err)
			}
		}
		result.Linked = append(result.Linked, remote)
	}

	if !opts.DryRun && len(result.Linked) == 0 {
		a.logger.Info(ctx, "no jobs to link")
	}
	return result, nil
}

// linkable returns the remote job want can be linked to, or the reason it
// cannot. Only unexpected remote failures are returned as errors.
func (a *App) linkable(ctx context.Context, api ports.JobsAPI, id string, want *job.Job) (*job.Job, string, error) {
	if want.LinkedID == nil {
		return nil, fmt.Sprintf("job %q has no linked_id and cannot be linked", id), nil
	}
	remote, err := api.GetJob(ctx, *want.LinkedID)
	if isNotFound(err) {
		return nil, fmt.Sprintf("job %d does not exist in dbt Cloud and cannot be linked", *want.LinkedID), nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get job %d: %w", *want.LinkedID, err)
	}
	if remote.Managed() {
		return nil, fmt.Sprintf("job %d is already linked with the identifier %s; unlink it first to link it to %s",
			*want.LinkedID, remote.Identifier, id), nil
	}
	return remote, "", nil
}

// UnlinkOptions controls Unlink.
type UnlinkOptions struct {
	Selection
	// Identifiers restricts the unlinked jobs. Empty unlinks every managed
	// job of the selection.
	Identifiers []string
	DryRun      bool
}

// Unlink removes the identifier from the names of managed remote jobs. When
// the account comes from the jobs files, only their identifiers are
// unlinked.
func (a *App) Unlink(ctx context.Context, opts UnlinkOptions) ([]*job.Job, error) {
	api, res, err := a.selectionClient(ctx, opts.Selection)
	if err != nil {
		return nil, err
	}
	defer resetCache(api)

	remote, err := api.ListJobs(ctx, ports.JobFilter{ProjectIDs: opts.ProjectIDs, EnvironmentIDs: opts.EnvironmentIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to list remote jobs: %w", err)
	}

	scope := config.Scope{ProjectIDs: opts.ProjectIDs, EnvironmentIDs: opts.EnvironmentIDs}
	var unlinked []*job.Job
	for i := range remote {
		j := &remote[i]
		if !j.Managed() || !scope.Contains(j) {
			continue
		}
		if len(opts.Identifiers) > 0 && !slices.Contains(opts.Identifiers, j.Identifier) {
			continue
		}
		if res != nil {
			if _, ok := res.Jobs[j.Identifier]; !ok {
				continue
			}
		}

		fields := []ports.Field{ports.F("job", j.String()), ports.F("identifier", j.Identifier)}
		j.Identifier = ""
		if opts.DryRun {
			a.logger.Info(ctx, "would unlink job", fields...)
		} else {
			a.logger.Info(ctx, "unlinking job", fields...)
			if _, err := api.UpdateJob(ctx, j); err != nil {
				return unlinked, fmt.Errorf("failed to unlink job %d: %w", j.RemoteID(), err)
			}
		}
		unlinked = append(unlinked, j)
	}

	if len(unlinked) == 0 {
		a.logger.Info(ctx, "no jobs to unlink")
	}
	return unlinked, nil
}

// Deactivate turns off every trigger of the selected remote jobs, keeping
// the jobs themselves. Jobs with no trigger enabled are left untouched.
func (a *App) Deactivate(ctx context.Context, sel Selection) ([]*job.Job, error) {
	api, _, err := a.selectionClient(ctx, sel)
	if err != nil {
		return nil, err
	}
	defer resetCache(api)

	remote, err := api.ListJobs(ctx, ports.JobFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list remote jobs: %w", err)
	}

	scope := config.Scope{ProjectIDs: sel.ProjectIDs, EnvironmentIDs: sel.EnvironmentIDs}
	var deactivated []*job.Job
	for i := range remote {
		j := &remote[i]
		if len(sel.JobIDs) > 0 && !slices.Contains(sel.JobIDs, j.RemoteID()) {
			continue
		}
		if !scope.Contains(j) {
			continue
		}
		if j.Triggers.Off() {
			a.logger.Info(ctx, "job is already deactivated", ports.F("job", j.String()))
			continue
		}

		a.logger.Info(ctx, "deactivating job", ports.F("job", j.String()))
		j.Triggers = job.Triggers{}
		if _, err := api.UpdateJob(ctx, j); err != nil {
			return deactivated, fmt.Errorf("failed to deactivate job %d: %w", j.RemoteID(), err)
		}
		deactivated = append(deactivated, j)
	}
	return deactivated, nil
}
