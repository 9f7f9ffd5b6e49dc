package changeset

import (
	"context"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/diff"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// Builder computes the change set between desired and remote jobs.
type Builder struct {
	envVars ports.EnvVarLister
	logger  ports.Logger
	baseURL string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger (default: no-op).
func WithLogger(l ports.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithBaseURL sets the base URL used for job links in warnings.
func WithBaseURL(u string) BuilderOption {
	return func(b *Builder) {
		b.baseURL = u
	}
}

// NewBuilder creates a Builder that lists remote env vars through envVars.
func NewBuilder(envVars ports.EnvVarLister, opts ...BuilderOption) *Builder {
	b := &Builder{
		envVars: envVars,
		logger:  ports.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build compares desired (keyed by identifier) with the remote jobs and
// returns the changes that reconcile them: job changes first, then env
// var changes. A failure to list remote env vars aborts the build.
func (b *Builder) Build(ctx context.Context, desired map[string]*job.Job, remote []job.Job) (*ChangeSet, error) {
	cs := New()
	if len(desired) == 0 {
		return cs, nil
	}

	tracked := b.track(ctx, cs, remote)

	desiredIDs := mapset.NewSetFromMapKeys(desired)
	trackedIDs := mapset.NewSetFromMapKeys(tracked)

	shared := sorted(desiredIDs.Intersect(trackedIDs))
	created := sorted(desiredIDs.Difference(trackedIDs))
	deleted := sorted(trackedIDs.Difference(desiredIDs))

	for _, id := range shared {
		want, have := desired[id], tracked[id]
		b.logger.Debug(ctx, "checking for differences", ports.F("identifier", id))
		same, d, err := diff.CompareJobs(want, have)
		if err != nil {
			return nil, fmt.Errorf("failed to compare job %s: %w", id, err)
		}
		if same {
			continue
		}
		update := want.Clone()
		update.ID = have.ID
		cs.Add(&Change{
			Kind:          KindJob,
			Action:        ActionUpdate,
			Identifier:    id,
			JobIdentifier: id,
			ProjectID:     want.ProjectID,
			EnvironmentID: want.EnvironmentID,
			Operation:     UpdateJob{Job: update},
			Differences:   d,
		})
	}

	for _, id := range created {
		want := desired[id]
		cs.Add(&Change{
			Kind:          KindJob,
			Action:        ActionCreate,
			Identifier:    id,
			JobIdentifier: id,
			ProjectID:     want.ProjectID,
			EnvironmentID: want.EnvironmentID,
			Operation:     CreateJob{Job: want.Clone()},
		})
	}

	for _, id := range deleted {
		have := tracked[id]
		cs.Add(&Change{
			Kind:          KindJob,
			Action:        ActionDelete,
			Identifier:    id,
			JobIdentifier: id,
			ProjectID:     have.ProjectID,
			EnvironmentID: have.EnvironmentID,
			Operation:     DeleteJob{Job: have},
		})
	}

	jobIDs := make(map[string]int, len(tracked))
	for id, j := range tracked {
		if j.ID != nil {
			jobIDs[id] = *j.ID
		}
	}

	identifiers := make([]string, 0, len(desired))
	for id := range desired {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	for _, id := range identifiers {
		want := desired[id]
		jobID, exists := jobIDs[id]
		if !exists {
			cs.Add(b.pendingEnvVarChanges(id, want)...)
			continue
		}
		changes, err := b.existingEnvVarChanges(ctx, id, want, jobID)
		if err != nil {
			return nil, err
		}
		cs.Add(changes...)
	}

	return cs, nil
}

// track indexes managed remote jobs by identifier. When several remote jobs
// share an identifier the first one is kept and a warning is recorded.
func (b *Builder) track(ctx context.Context, cs *ChangeSet, remote []job.Job) map[string]*job.Job {
	tracked := make(map[string]*job.Job)
	dupes := make(map[string][]*job.Job)
	var order []string

	for i := range remote {
		r := &remote[i]
		if !r.Managed() {
			continue
		}
		if _, ok := tracked[r.Identifier]; !ok {
			tracked[r.Identifier] = r
			continue
		}
		if _, ok := dupes[r.Identifier]; !ok {
			order = append(order, r.Identifier)
			dupes[r.Identifier] = []*job.Job{tracked[r.Identifier]}
		}
		dupes[r.Identifier] = append(dupes[r.Identifier], r)
	}

	for _, id := range order {
		jobs := dupes[id]
		ids := make([]int, 0, len(jobs))
		urls := make([]string, 0, len(jobs))
		for _, j := range jobs {
			ids = append(ids, j.RemoteID())
			if b.baseURL != "" {
				urls = append(urls, j.URL(b.baseURL))
			}
		}
		w := Warning{
			Code:       WarnDuplicateIdentifier,
			Identifier: id,
			Message:    fmt.Sprintf("identifier %s is used by %d remote jobs %v; only job %d is managed", id, len(jobs), ids, ids[0]),
			URLs:       urls,
		}
		cs.Warn(w)
		b.logger.Warn(ctx, w.Message, ports.F("identifier", id), ports.F("job_ids", ids))
	}

	return tracked
}

// pendingEnvVarChanges creates every env var of a job that does not exist
// yet; the job id is resolved at apply time.
func (b *Builder) pendingEnvVarChanges(id string, want *job.Job) []*Change {
	changes := make([]*Change, 0, len(want.CustomEnvironmentVariables))
	for _, v := range want.CustomEnvironmentVariables {
		changes = append(changes, &Change{
			Kind:          KindEnvVarOverwrite,
			Action:        ActionCreate,
			Identifier:    EnvVarIdentifier(id, v.Name),
			JobIdentifier: id,
			ProjectID:     want.ProjectID,
			EnvironmentID: want.EnvironmentID,
			Operation: UpsertEnvVar{
				ProjectID: want.ProjectID,
				Job:       JobRef{Identifier: id},
				EnvVar:    v,
			},
			EnvVarDiff: &diff.EnvVarDiff{NewValue: v.Value},
		})
	}
	return changes
}

func (b *Builder) existingEnvVarChanges(ctx context.Context, id string, want *job.Job, jobID int) ([]*Change, error) {
	remoteVars, err := b.envVars.ListEnvVars(ctx, want.ProjectID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list env vars of job %s: %w", id, err)
	}

	var changes []*Change
	for _, v := range want.CustomEnvironmentVariables {
		same, existingID, d := diff.CompareEnvVar(v, remoteVars)
		if same {
			continue
		}
		action := ActionUpdate
		if existingID == nil {
			action = ActionCreate
		}
		ref := jobID
		changes = append(changes, &Change{
			Kind:          KindEnvVarOverwrite,
			Action:        action,
			Identifier:    EnvVarIdentifier(id, v.Name),
			JobIdentifier: id,
			ProjectID:     want.ProjectID,
			EnvironmentID: want.EnvironmentID,
			Operation: UpsertEnvVar{
				ProjectID:  want.ProjectID,
				Job:        JobRef{ID: &ref, Identifier: id},
				EnvVar:     v,
				ExistingID: existingID,
			},
			EnvVarDiff: &d,
		})
	}

	declared := mapset.NewSet(want.CustomEnvironmentVariables.Names()...)
	names := make([]string, 0, len(remoteVars))
	for name := range remoteVars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rv := remoteVars[name]
		// Inherited variables have no job-level override to remove.
		if declared.Contains(name) || rv.Inherited() {
			continue
		}
		changes = append(changes, &Change{
			Kind:          KindEnvVarOverwrite,
			Action:        ActionDelete,
			Identifier:    EnvVarIdentifier(id, name),
			JobIdentifier: id,
			ProjectID:     want.ProjectID,
			EnvironmentID: want.EnvironmentID,
			Operation: DeleteEnvVar{
				ProjectID: want.ProjectID,
				EnvVarID:  *rv.ID,
			},
		})
	}

	return changes, nil
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
