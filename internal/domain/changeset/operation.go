package changeset

import (
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
)

// Operation is the remote call a change performs. The set is closed: the
// executor dispatches on the concrete types below.
type Operation interface {
	operation()
}

// JobRef points at the job an env var belongs to. ID is nil when the job
// does not exist yet; the executor then resolves Identifier against the
// ids of jobs created earlier in the same apply.
type JobRef struct {
	ID         *int
	Identifier string
}

// Resolved reports whether the job id is known at plan time.
func (r JobRef) Resolved() bool {
	return r.ID != nil
}

// CreateJob creates a job.
type CreateJob struct {
	Job *job.Job
}

// UpdateJob overwrites a job; Job.ID is the remote id.
type UpdateJob struct {
	Job *job.Job
}

// DeleteJob deletes the remote job.
type DeleteJob struct {
	Job *job.Job
}

// UpsertEnvVar creates (ExistingID nil) or updates a job-level override.
type UpsertEnvVar struct {
	ProjectID  int
	Job        JobRef
	EnvVar     job.EnvVar
	ExistingID *int
}

// DeleteEnvVar deletes a job-level override.
type DeleteEnvVar struct {
	ProjectID int
	EnvVarID  int
}

func (CreateJob) operation()    {}
func (UpdateJob) operation()    {}
func (DeleteJob) operation()    {}
func (UpsertEnvVar) operation() {}
func (DeleteEnvVar) operation() {}
