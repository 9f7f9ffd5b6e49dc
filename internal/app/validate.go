package app

import (
	"context"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// ValidateOptions selects the jobs files to check.
type ValidateOptions struct {
	ConfigPatterns []string
	VarsPatterns   []string
	// Online also checks the referenced ids against the remote service.
	Online bool
}

// Validation is the outcome of Validate.
type Validation struct {
	Jobs   int
	Online bool
	Issues []string
}

// Valid reports whether no issue was found.
func (v *Validation) Valid() bool {
	return len(v.Issues) == 0
}

// Validate loads the jobs files, which checks their schema, cron
// expressions and templates. Online, it also checks that every project,
// environment, deferring job and deferring environment id exists. Load
// failures are returned as errors; id mismatches are reported as Issues.
func (a *App) Validate(ctx context.Context, opts ValidateOptions) (*Validation, error) {
	res, err := a.load(ctx, opts.ConfigPatterns, opts.VarsPatterns)
	if err != nil {
		return nil, err
	}
	v := &Validation{Jobs: len(res.Jobs), Online: opts.Online}
	if !opts.Online || len(res.Jobs) == 0 {
		return v, nil
	}

	api, _, err := a.client(ctx, res.Jobs)
	if err != nil {
		return nil, err
	}
	defer resetCache(api)

	projects := mapset.NewSet[int]()
	envs := mapset.NewSet[int]()
	deferringJobs := mapset.NewSet[int]()
	deferringEnvs := mapset.NewSet[int]()
	for _, j := range res.Jobs {
		projects.Add(j.ProjectID)
		envs.Add(j.EnvironmentID)
		if j.DeferringJobDefinitionID != nil {
			deferringJobs.Add(*j.DeferringJobDefinitionID)
		}
		if j.DeferringEnvironmentID != nil {
			deferringEnvs.Add(*j.DeferringEnvironmentID)
		}
	}
	projectIDs := sortedInts(projects)

	environments, err := api.ListEnvironments(ctx, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	remoteProjects := mapset.NewSet[int]()
	remoteEnvs := mapset.NewSet[int]()
	for _, e := range environments {
		remoteProjects.Add(e.ProjectID)
		remoteEnvs.Add(e.ID)
	}

	a.logger.Info(ctx, "checking project ids")
	v.check("project", projects.Difference(remoteProjects))
	a.logger.Info(ctx, "checking environment ids")
	v.check("environment", envs.Difference(remoteEnvs))

	if deferringJobs.Cardinality() > 0 {
		a.logger.Info(ctx, "checking deferring job ids")
		remote, err := api.ListJobs(ctx, ports.JobFilter{ProjectIDs: projectIDs})
		if err != nil {
			return nil, fmt.Errorf("failed to list remote jobs: %w", err)
		}
		remoteJobs := mapset.NewSet[int]()
		for i := range remote {
			remoteJobs.Add(remote[i].RemoteID())
		}
		v.check("deferring job", deferringJobs.Difference(remoteJobs))
	}

	if deferringEnvs.Cardinality() > 0 {
		a.logger.Info(ctx, "checking deferring environment ids")
		v.check("deferring environment", deferringEnvs.Difference(remoteEnvs))
	}

	for _, issue := range v.Issues {
		a.logger.Error(ctx, issue)
	}
	return v, nil
}

func (v *Validation) check(kind string, missing mapset.Set[int]) {
	if missing.Cardinality() == 0 {
		return
	}
	v.Issues = append(v.Issues, fmt.Sprintf("the following %s ids are not valid: %v", kind, sortedInts(missing)))
}

func sortedInts(s mapset.Set[int]) []int {
	out := s.ToSlice()
	sort.Ints(out)
	return out
}
