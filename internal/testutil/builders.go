package testutil

import (
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
)

// Default scope of jobs built by JobBuilder.
const (
	AccountID     = 1
	ProjectID     = 100
	EnvironmentID = 200
)

// JobBuilder builds normalized jobs for tests.
type JobBuilder struct {
	job job.Job
}

// NewJobBuilder starts a managed job with the given identifier.
func NewJobBuilder(identifier string) *JobBuilder {
	return &JobBuilder{
		job: job.Job{
			Identifier:    identifier,
			AccountID:     AccountID,
			ProjectID:     ProjectID,
			EnvironmentID: EnvironmentID,
			Name:          "Job " + identifier,
			Schedule:      job.Schedule{Cron: "0 6 * * *"},
			ExecuteSteps:  []string{"dbt build"},
			Triggers:      job.Triggers{Schedule: true},
		},
	}
}

// WithID sets the remote id.
func (b *JobBuilder) WithID(id int) *JobBuilder {
	b.job.ID = &id
	return b
}

// WithName sets the job name.
func (b *JobBuilder) WithName(name string) *JobBuilder {
	b.job.Name = name
	return b
}

// WithScope sets the project and environment.
func (b *JobBuilder) WithScope(projectID, environmentID int) *JobBuilder {
	b.job.ProjectID = projectID
	b.job.EnvironmentID = environmentID
	return b
}

// WithThreads sets settings.threads.
func (b *JobBuilder) WithThreads(n int) *JobBuilder {
	b.job.Settings.Threads = n
	return b
}

// WithSteps replaces the execute steps.
func (b *JobBuilder) WithSteps(steps ...string) *JobBuilder {
	b.job.ExecuteSteps = steps
	return b
}

// WithEnvVar appends an env var override.
func (b *JobBuilder) WithEnvVar(name, value string) *JobBuilder {
	b.job.CustomEnvironmentVariables = append(b.job.CustomEnvironmentVariables, job.EnvVar{Name: name, Value: value})
	return b
}

// Unmanaged clears the identifier.
func (b *JobBuilder) Unmanaged() *JobBuilder {
	b.job.Identifier = ""
	return b
}

// Build returns a normalized copy of the job.
func (b *JobBuilder) Build() *job.Job {
	j := b.job.Clone()
	j.Normalize()
	return j
}

// Desired indexes jobs by identifier.
func Desired(jobs ...*job.Job) map[string]*job.Job {
	m := make(map[string]*job.Job, len(jobs))
	for _, j := range jobs {
		m[j.Identifier] = j
	}
	return m
}
