package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"

	"github.com/felixgeelhaar/jobs-as-code/internal/adapters/render"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// Selection picks remote jobs. The account comes from AccountID, or from the
// jobs files when it is zero.
type Selection struct {
	ConfigPatterns []string
	AccountID      int
	ProjectIDs     []int
	EnvironmentIDs []int
	JobIDs         []int
}

// ImportOptions controls Import.
type ImportOptions struct {
	Selection
	ManagedOnly bool
	// Filter keeps jobs whose import filter is empty, "*" or contains it.
	Filter          string
	IncludeLinkedID bool
	// TemplatesPath is a YAML file of field templates applied to every
	// exported job.
	TemplatesPath string
}

// Import writes the selected remote jobs as a jobs file to the App output.
// Job-level env var overrides with a value are exported with their job.
func (a *App) Import(ctx context.Context, opts ImportOptions) ([]*job.Job, error) {
	var templates map[string]string
	if opts.TemplatesPath != "" {
		t, err := config.LoadFieldTemplates(opts.TemplatesPath)
		if err != nil {
			return nil, fmt.Errorf("invalid templated fields file: %w", err)
		}
		templates = t
	}

	api, _, err := a.selectionClient(ctx, opts.Selection)
	if err != nil {
		return nil, err
	}
	defer resetCache(api)

	jobs, err := a.fetch(ctx, api, opts.Selection)
	if err != nil {
		return nil, err
	}

	selected := make([]*job.Job, 0, len(jobs))
	for _, j := range jobs {
		if opts.ManagedOnly && !j.Managed() {
			continue
		}
		if !j.MatchesImportFilter(opts.Filter) {
			continue
		}
		selected = append(selected, j)
	}

	for _, j := range selected {
		a.logger.Info(ctx, "getting env var overwrites", ports.F("job", j.String()))
		vars, err := api.ListEnvVars(ctx, j.ProjectID, j.RemoteID())
		if err != nil {
			return nil, fmt.Errorf("failed to list env vars of job %d: %w", j.RemoteID(), err)
		}
		names := make([]string, 0, len(vars))
		for name, v := range vars {
			if v.Value != "" {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			j.CustomEnvironmentVariables = append(j.CustomEnvironmentVariables, job.EnvVar{Name: name, Value: vars[name].Value})
		}
	}

	if err := render.ExportYAML(a.out, selected, render.ExportOptions{
		IncludeLinkedID: opts.IncludeLinkedID,
		Templates:       templates,
	}); err != nil {
		return nil, fmt.Errorf("failed to export jobs: %w", err)
	}
	return selected, nil
}

// fetch reads jobs one by one when only job ids are given, and lists them
// otherwise. Missing ids are skipped.
func (a *App) fetch(ctx context.Context, api ports.JobsAPI, sel Selection) ([]*job.Job, error) {
	a.logger.Info(ctx, "getting the jobs definition from dbt Cloud")

	if len(sel.JobIDs) > 0 && len(sel.ProjectIDs) == 0 && len(sel.EnvironmentIDs) == 0 {
		out := make([]*job.Job, 0, len(sel.JobIDs))
		for _, id := range sel.JobIDs {
			j, err := api.GetJob(ctx, id)
			if isNotFound(err) {
				a.logger.Warn(ctx, "job not found", ports.F("job_id", id))
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get job %d: %w", id, err)
			}
			out = append(out, j)
		}
		return out, nil
	}

	remote, err := api.ListJobs(ctx, ports.JobFilter{ProjectIDs: sel.ProjectIDs, EnvironmentIDs: sel.EnvironmentIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to list remote jobs: %w", err)
	}
	out := make([]*job.Job, 0, len(remote))
	for i := range remote {
		if len(sel.JobIDs) > 0 && !slices.Contains(sel.JobIDs, remote[i].RemoteID()) {
			continue
		}
		out = append(out, &remote[i])
	}
	return out, nil
}

// selectionClient resolves the account of a selection. The jobs files are
// only read when no account id is given.
func (a *App) selectionClient(ctx context.Context, sel Selection) (ports.JobsAPI, *config.Result, error) {
	if sel.AccountID > 0 {
		api, err := a.connect(sel.AccountID)
		return api, nil, err
	}
	if len(sel.ConfigPatterns) == 0 {
		return nil, nil, config.NewUserError(config.ErrCodeInvalidFlags, "either --config or --account-id must be provided")
	}
	res, err := a.load(ctx, sel.ConfigPatterns, nil)
	if err != nil {
		return nil, nil, err
	}
	api, _, err := a.client(ctx, res.Jobs)
	if err != nil {
		return nil, nil, err
	}
	return api, res, nil
}

func isNotFound(err error) bool {
	var remote *ports.RemoteError
	return errors.As(err, &remote) && remote.StatusCode == http.StatusNotFound
}
