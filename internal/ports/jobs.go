package ports

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
)

// JobFilter narrows a job listing. Empty slices mean no restriction.
type JobFilter struct {
	ProjectIDs     []int
	EnvironmentIDs []int
}

// Environment is a deployment environment of a project.
type Environment struct {
	ID        int    `json:"id"`
	ProjectID int    `json:"project_id"`
	Name      string `json:"name"`
}

// EnvVarLister lists the environment variables of one remote job, keyed by name.
type EnvVarLister interface {
	ListEnvVars(ctx context.Context, projectID, jobID int) (map[string]job.EnvVarOverwrite, error)
}

// JobsAPI is the remote-state accessor for jobs and their environment
// variables. Every failure returned by an implementation is a *RemoteError.
type JobsAPI interface {
	EnvVarLister

	ListJobs(ctx context.Context, filter JobFilter) ([]job.Job, error)
	GetJob(ctx context.Context, jobID int) (*job.Job, error)
	CreateJob(ctx context.Context, j *job.Job) (*job.Job, error)
	UpdateJob(ctx context.Context, j *job.Job) (*job.Job, error)
	DeleteJob(ctx context.Context, j *job.Job) error

	// UpsertEnvVar creates the job-level override when existingID is nil
	// and updates it otherwise.
	UpsertEnvVar(ctx context.Context, projectID, jobID int, v job.EnvVar, existingID *int) (*job.EnvVarOverwrite, error)
	DeleteEnvVar(ctx context.Context, projectID, envVarID int) error

	ListEnvironments(ctx context.Context, projectIDs []int) ([]Environment, error)
}

// RemoteError is a failed remote operation. The executor records it on the
// change and keeps going (or stops, in fail-fast mode); every other error
// type aborts the apply.
type RemoteError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s %s returned %d: %s", e.Op, e.Method, e.URL, e.StatusCode, e.Body)
	case e.Err != nil && e.URL != "":
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": remote operation failed"
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient (rate limit, server
// error or transport failure).
func (e *RemoteError) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
