package dbtcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	gocache "github.com/patrickmn/go-cache"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// scopedValue is one scope of an environment variable in the v3 listing.
type scopedValue struct {
	ID    *int    `json:"id"`
	Value *string `json:"value"`
}

type envVarScopes struct {
	Project     *scopedValue `json:"project"`
	Environment *scopedValue `json:"environment"`
	Job         *scopedValue `json:"job"`
}

// envVarPayload is the write body for a job-level override.
type envVarPayload struct {
	ID              *int   `json:"id,omitempty"`
	AccountID       int    `json:"account_id"`
	ProjectID       int    `json:"project_id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	RawValue        string `json:"raw_value"`
	JobDefinitionID int    `json:"job_definition_id"`
}

type envVarResponse struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	DisplayValue    string `json:"display_value"`
	JobDefinitionID *int   `json:"job_definition_id"`
}

func envVarCacheKey(projectID, jobID int) string {
	return fmt.Sprintf("%d:%d", projectID, jobID)
}

// ListEnvVars returns the variables visible to a job keyed by name. A
// variable with a job-level value carries that value and its id; one that
// only exists at the project or environment scope is returned with a nil
// id. Listings are cached until ResetCache.
func (c *Client) ListEnvVars(ctx context.Context, projectID, jobID int) (map[string]job.EnvVarOverwrite, error) {
	key := envVarCacheKey(projectID, jobID)
	if cached, ok := c.envVars.Get(key); ok {
		return cached.(map[string]job.EnvVarOverwrite), nil
	}

	q := url.Values{}
	q.Set("job_definition_id", strconv.Itoa(jobID))
	env, err := c.do(ctx, request{
		op:     fmt.Sprintf("list env vars of job %d", jobID),
		method: http.MethodGet,
		path:   c.v3("/projects/%d/environment-variables/job/", projectID),
		query:  q,
	})
	if err != nil {
		return nil, err
	}

	var scopes map[string]envVarScopes
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &scopes); err != nil {
			return nil, c.decodeError("list env vars", err)
		}
	}

	out := make(map[string]job.EnvVarOverwrite, len(scopes))
	for name, s := range scopes {
		v := job.EnvVarOverwrite{
			Name:            name,
			JobDefinitionID: jobID,
			ProjectID:       projectID,
			AccountID:       c.accountID,
		}
		if s.Job != nil && s.Job.ID != nil {
			id := *s.Job.ID
			v.ID = &id
			if s.Job.Value != nil {
				v.Value = *s.Job.Value
			}
		}
		out[name] = v
	}

	c.envVars.Set(key, out, gocache.NoExpiration)
	return out, nil
}

// UpsertEnvVar writes the job-level value of v, creating the override when
// existingID is nil.
func (c *Client) UpsertEnvVar(ctx context.Context, projectID, jobID int, v job.EnvVar, existingID *int) (*job.EnvVarOverwrite, error) {
	payload := envVarPayload{
		ID:              existingID,
		AccountID:       c.accountID,
		ProjectID:       projectID,
		Name:            v.Name,
		Type:            "job",
		RawValue:        v.Value,
		JobDefinitionID: jobID,
	}

	op := fmt.Sprintf("create env var %s of job %d", v.Name, jobID)
	path := c.v3("/projects/%d/environment-variables/", projectID)
	if existingID != nil {
		op = fmt.Sprintf("update env var %s of job %d", v.Name, jobID)
		path = c.v3("/projects/%d/environment-variables/%d/", projectID, *existingID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ports.RemoteError{Op: op, Err: err}
	}
	env, err := c.do(ctx, request{op: op, method: http.MethodPost, path: path, body: body})
	if err != nil {
		return nil, err
	}
	c.envVars.Delete(envVarCacheKey(projectID, jobID))

	var resp envVarResponse
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			return nil, c.decodeError(op, err)
		}
	}
	id := resp.ID
	return &job.EnvVarOverwrite{
		ID:              &id,
		Name:            v.Name,
		Value:           v.Value,
		JobDefinitionID: jobID,
		ProjectID:       projectID,
		AccountID:       c.accountID,
	}, nil
}

// DeleteEnvVar removes a job-level override.
func (c *Client) DeleteEnvVar(ctx context.Context, projectID, envVarID int) error {
	_, err := c.do(ctx, request{
		op:     fmt.Sprintf("delete env var %d", envVarID),
		method: http.MethodDelete,
		path:   c.v3("/projects/%d/environment-variables/%d/", projectID, envVarID),
	})
	return err
}

type environmentResponse struct {
	ID        int    `json:"id"`
	ProjectID int    `json:"project_id"`
	Name      string `json:"name"`
}

// ListEnvironments returns the environments of the given projects.
func (c *Client) ListEnvironments(ctx context.Context, projectIDs []int) ([]ports.Environment, error) {
	var out []ports.Environment
	for _, projectID := range projectIDs {
		env, err := c.do(ctx, request{
			op:     fmt.Sprintf("list environments of project %d", projectID),
			method: http.MethodGet,
			path:   c.v3("/projects/%d/environments/", projectID),
		})
		if err != nil {
			return nil, err
		}
		var page []environmentResponse
		if err := json.Unmarshal(env.Data, &page); err != nil {
			return nil, c.decodeError("list environments", err)
		}
		for _, e := range page {
			pid := e.ProjectID
			if pid == 0 {
				pid = projectID
			}
			out = append(out, ports.Environment{ID: e.ID, ProjectID: pid, Name: e.Name})
		}
	}
	return out, nil
}

var _ ports.JobsAPI = (*Client)(nil)
