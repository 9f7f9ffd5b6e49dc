package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// FakeJobsAPI is an in-memory remote service. Jobs and env vars live in
// maps keyed by id; every call is recorded in Calls.
type FakeJobsAPI struct {
	mu           sync.Mutex
	jobs         map[int]*job.Job
	envVars      map[int]map[string]job.EnvVarOverwrite
	environments []ports.Environment
	failures     map[string]error
	nextID       int
	calls        []string
}

// NewFakeJobsAPI returns an empty fake. Ids start at 1000.
func NewFakeJobsAPI() *FakeJobsAPI {
	return &FakeJobsAPI{
		jobs:     make(map[int]*job.Job),
		envVars:  make(map[int]map[string]job.EnvVarOverwrite),
		failures: make(map[string]error),
		nextID:   1000,
	}
}

// AddJob stores a remote job, assigning an id when it has none.
func (f *FakeJobsAPI) AddJob(j *job.Job) *job.Job {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := j.Clone()
	if stored.ID == nil {
		id := f.allocate()
		stored.ID = &id
	}
	stored.CustomEnvironmentVariables = nil
	f.jobs[*stored.ID] = stored
	return stored.Clone()
}

// AddEnvVar stores a job-level override and returns its id.
func (f *FakeJobsAPI) AddEnvVar(jobID int, name, value string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.allocate()
	f.vars(jobID)[name] = job.EnvVarOverwrite{ID: &id, Name: name, Value: value, JobDefinitionID: jobID}
	return id
}

// AddInheritedEnvVar stores a variable defined above the job scope.
func (f *FakeJobsAPI) AddInheritedEnvVar(jobID int, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.vars(jobID)[name] = job.EnvVarOverwrite{Name: name, JobDefinitionID: jobID}
}

// AddEnvironment registers an environment for ListEnvironments.
func (f *FakeJobsAPI) AddEnvironment(env ports.Environment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.environments = append(f.environments, env)
}

// FailOn makes the named call fail with a RemoteError. Keys look like
// "CreateJob:daily", "UpdateJob:42", "UpsertEnvVar:42:DBT_X" or
// "ListEnvVars:42".
func (f *FakeJobsAPI) FailOn(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = &ports.RemoteError{Op: key, StatusCode: 500, Body: "injected failure"}
}

// FailWith makes the named call return err as is.
func (f *FakeJobsAPI) FailWith(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = err
}

// Calls returns the recorded calls in order.
func (f *FakeJobsAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// ResetCalls clears the call log.
func (f *FakeJobsAPI) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Job returns a copy of the stored job.
func (f *FakeJobsAPI) Job(id int) (*job.Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

// EnvVars returns a copy of the stored variables of a job.
func (f *FakeJobsAPI) EnvVars(jobID int) map[string]job.EnvVarOverwrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]job.EnvVarOverwrite)
	for k, v := range f.envVars[jobID] {
		out[k] = v
	}
	return out
}

// ListJobs implements ports.JobsAPI. Results are ordered by id.
func (f *FakeJobsAPI) ListJobs(_ context.Context, filter ports.JobFilter) ([]job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("ListJobs"); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(f.jobs))
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out []job.Job
	for _, id := range ids {
		j := f.jobs[id]
		if len(filter.ProjectIDs) > 0 && !slices.Contains(filter.ProjectIDs, j.ProjectID) {
			continue
		}
		if len(filter.EnvironmentIDs) > 0 && !slices.Contains(filter.EnvironmentIDs, j.EnvironmentID) {
			continue
		}
		out = append(out, *j.Clone())
	}
	return out, nil
}

// GetJob implements ports.JobsAPI.
func (f *FakeJobsAPI) GetJob(_ context.Context, jobID int) (*job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("GetJob:%d", jobID)); err != nil {
		return nil, err
	}
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, &ports.RemoteError{Op: "get job", StatusCode: 404, Body: "not found"}
	}
	return j.Clone(), nil
}

// CreateJob implements ports.JobsAPI.
func (f *FakeJobsAPI) CreateJob(_ context.Context, j *job.Job) (*job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("CreateJob:" + j.Identifier); err != nil {
		return nil, err
	}
	stored := j.Clone()
	id := f.allocate()
	stored.ID = &id
	stored.CustomEnvironmentVariables = nil
	stored.LinkedID = nil
	f.jobs[id] = stored
	return stored.Clone(), nil
}

// UpdateJob implements ports.JobsAPI.
func (f *FakeJobsAPI) UpdateJob(_ context.Context, j *job.Job) (*job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("UpdateJob:%d", j.RemoteID())); err != nil {
		return nil, err
	}
	if _, ok := f.jobs[j.RemoteID()]; !ok {
		return nil, &ports.RemoteError{Op: "update job", StatusCode: 404, Body: "not found"}
	}
	stored := j.Clone()
	stored.CustomEnvironmentVariables = nil
	stored.LinkedID = nil
	f.jobs[j.RemoteID()] = stored
	return stored.Clone(), nil
}

// DeleteJob implements ports.JobsAPI.
func (f *FakeJobsAPI) DeleteJob(_ context.Context, j *job.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("DeleteJob:%d", j.RemoteID())); err != nil {
		return err
	}
	delete(f.jobs, j.RemoteID())
	delete(f.envVars, j.RemoteID())
	return nil
}

// ListEnvVars implements ports.EnvVarLister.
func (f *FakeJobsAPI) ListEnvVars(_ context.Context, _, jobID int) (map[string]job.EnvVarOverwrite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("ListEnvVars:%d", jobID)); err != nil {
		return nil, err
	}
	out := make(map[string]job.EnvVarOverwrite)
	for k, v := range f.envVars[jobID] {
		out[k] = v
	}
	return out, nil
}

// UpsertEnvVar implements ports.JobsAPI.
func (f *FakeJobsAPI) UpsertEnvVar(_ context.Context, projectID, jobID int, v job.EnvVar, existingID *int) (*job.EnvVarOverwrite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("UpsertEnvVar:%d:%s", jobID, v.Name)); err != nil {
		return nil, err
	}
	var id int
	if existingID != nil {
		id = *existingID
	} else {
		id = f.allocate()
	}
	o := job.EnvVarOverwrite{ID: &id, Name: v.Name, Value: v.Value, JobDefinitionID: jobID, ProjectID: projectID}
	f.vars(jobID)[v.Name] = o
	return &o, nil
}

// DeleteEnvVar implements ports.JobsAPI.
func (f *FakeJobsAPI) DeleteEnvVar(_ context.Context, _, envVarID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("DeleteEnvVar:%d", envVarID)); err != nil {
		return err
	}
	for _, vars := range f.envVars {
		for name, v := range vars {
			if v.ID != nil && *v.ID == envVarID {
				delete(vars, name)
			}
		}
	}
	return nil
}

// ListEnvironments implements ports.JobsAPI.
func (f *FakeJobsAPI) ListEnvironments(_ context.Context, projectIDs []int) ([]ports.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("ListEnvironments"); err != nil {
		return nil, err
	}
	var out []ports.Environment
	for _, env := range f.environments {
		if len(projectIDs) == 0 || slices.Contains(projectIDs, env.ProjectID) {
			out = append(out, env)
		}
	}
	return out, nil
}

func (f *FakeJobsAPI) record(call string) error {
	f.calls = append(f.calls, call)
	return f.failures[call]
}

func (f *FakeJobsAPI) allocate() int {
	f.nextID++
	return f.nextID
}

func (f *FakeJobsAPI) vars(jobID int) map[string]job.EnvVarOverwrite {
	vars, ok := f.envVars[jobID]
	if !ok {
		vars = make(map[string]job.EnvVarOverwrite)
		f.envVars[jobID] = vars
	}
	return vars
}

var _ ports.JobsAPI = (*FakeJobsAPI)(nil)
