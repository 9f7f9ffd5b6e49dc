// Package job holds the desired-state model of a scheduled job and its
// environment-variable overrides, along with the normalization and
// validation rules applied at the model boundary.
package job

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Job is a named unit of scheduled work, either declared in configuration
// (desired) or observed on the remote service (remote).
type Job struct {
	ID                            *int                           `json:"id,omitempty" yaml:"-"`
	LinkedID                      *int                           `json:"linked_id,omitempty" yaml:"linked_id,omitempty"`
	Identifier                    string                         `json:"identifier,omitempty" yaml:"-"`
	ImportFilter                  string                         `json:"-" yaml:"-"`
	AccountID                     int                            `json:"account_id" yaml:"account_id"`
	ProjectID                     int                            `json:"project_id" yaml:"project_id"`
	EnvironmentID                 int                            `json:"environment_id" yaml:"environment_id"`
	DBTVersion                    *string                        `json:"dbt_version" yaml:"dbt_version,omitempty"`
	Name                          string                         `json:"name" yaml:"name"`
	Settings                      Settings                       `json:"settings" yaml:"settings"`
	Execution                     Execution                      `json:"execution" yaml:"execution"`
	DeferringJobDefinitionID      *int                           `json:"deferring_job_definition_id" yaml:"deferring_job_definition_id,omitempty"`
	DeferringEnvironmentID        *int                           `json:"deferring_environment_id" yaml:"deferring_environment_id,omitempty"`
	RunGenerateSources            bool                           `json:"run_generate_sources" yaml:"run_generate_sources"`
	ExecuteSteps                  []string                       `json:"execute_steps" yaml:"execute_steps"`
	GenerateDocs                  bool                           `json:"generate_docs" yaml:"generate_docs"`
	Schedule                      Schedule                       `json:"schedule" yaml:"schedule"`
	Triggers                      Triggers                       `json:"triggers" yaml:"triggers"`
	Description                   string                         `json:"description" yaml:"description,omitempty"`
	State                         int                            `json:"state" yaml:"state,omitempty"`
	RunCompareChanges             bool                           `json:"run_compare_changes" yaml:"run_compare_changes"`
	CompareChangesFlags           string                         `json:"compare_changes_flags" yaml:"compare_changes_flags"`
	JobType                       string                         `json:"job_type" yaml:"job_type"`
	TriggersOnDraftPR             bool                           `json:"triggers_on_draft_pr" yaml:"triggers_on_draft_pr"`
	JobCompletionTriggerCondition *JobCompletionTriggerCondition `json:"job_completion_trigger_condition" yaml:"job_completion_trigger_condition,omitempty"`
	CustomEnvironmentVariables    EnvVars                        `json:"custom_environment_variables,omitempty" yaml:"custom_environment_variables,omitempty"`
}

// payloadExcluded lists the fields the remote service never stores.
var payloadExcluded = []string{"linked_id", "identifier", "custom_environment_variables"}

// FromRemote builds a Job from a remote payload, extracting the identifier
// embedded in the job name.
func FromRemote(data []byte) (*Job, error) {
	j := New()
	if err := json.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	info, err := ExtractIdentifier(j.Name)
	if err != nil {
		return nil, err
	}
	if info.Identifier != "" {
		j.Identifier = info.Identifier
		j.Name = strings.TrimSpace(strings.Replace(j.Name, "[["+info.Raw+"]]", "", 1))
	}
	j.ImportFilter = info.ImportFilter
	j.Derive()
	return j, nil
}

// Managed reports whether the job carries an identifier and is therefore
// eligible for reconciliation.
func (j *Job) Managed() bool {
	return j.Identifier != ""
}

// RemoteID returns the remote id, or zero when the job has not been created.
func (j *Job) RemoteID() int {
	if j.ID == nil {
		return 0
	}
	return *j.ID
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	if j.ID != nil {
		id := *j.ID
		c.ID = &id
	}
	if j.LinkedID != nil {
		id := *j.LinkedID
		c.LinkedID = &id
	}
	c.ExecuteSteps = append([]string(nil), j.ExecuteSteps...)
	c.CustomEnvironmentVariables = append(EnvVars(nil), j.CustomEnvironmentVariables...)
	if j.JobCompletionTriggerCondition != nil {
		cond := *j.JobCompletionTriggerCondition
		cond.Condition.Statuses = append([]int(nil), cond.Condition.Statuses...)
		c.JobCompletionTriggerCondition = &cond
	}
	if j.Schedule.Date != nil {
		d := *j.Schedule.Date
		c.Schedule.Date = &d
	}
	if j.Schedule.Time != nil {
		t := *j.Schedule.Time
		c.Schedule.Time = &t
	}
	return &c
}

// RemoteName returns the name as stored remotely, with the identifier
// appended when the job is managed.
func (j *Job) RemoteName() string {
	if j.Identifier == "" {
		return j.Name
	}
	return fmt.Sprintf("%s [[%s]]", j.Name, j.Identifier)
}

// Payload encodes the job as a request body for the remote service.
func (j *Job) Payload() ([]byte, error) {
	fields, err := toFields(j)
	if err != nil {
		return nil, err
	}
	for _, key := range payloadExcluded {
		delete(fields, key)
	}
	fields["name"] = j.RemoteName()
	return json.Marshal(fields)
}

// URL returns the address of the job in the remote service UI.
func (j *Job) URL(baseURL string) string {
	return fmt.Sprintf("%s/deploy/%d/projects/%d/jobs/%d",
		strings.TrimRight(baseURL, "/"), j.AccountID, j.ProjectID, j.RemoteID())
}

// String returns a short label for logs.
func (j *Job) String() string {
	if j.ID != nil {
		return fmt.Sprintf("%d:%s", *j.ID, j.Name)
	}
	return j.Name
}

// Fields returns the JSON-shaped projection of the job.
func (j *Job) Fields() (map[string]any, error) {
	return toFields(j)
}

func toFields(j *Job) (map[string]any, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job %q: %w", j.Name, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to project job %q: %w", j.Name, err)
	}
	return fields, nil
}
