package dbtcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// buildJobQuery returns the listing parameters for one page. A single
// project is sent as project_id, several as project_id__in. The
// environment is only sent when exactly one is requested; the others
// are filtered client-side.
func buildJobQuery(projectIDs []int, environmentID *int, offset int) url.Values {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	switch len(projectIDs) {
	case 0:
	case 1:
		q.Set("project_id", strconv.Itoa(projectIDs[0]))
	default:
		ids := make([]string, len(projectIDs))
		for i, id := range projectIDs {
			ids[i] = strconv.Itoa(id)
		}
		q.Set("project_id__in", "["+strings.Join(ids, ",")+"]")
	}
	if environmentID != nil {
		q.Set("environment_id", strconv.Itoa(*environmentID))
	}
	return q
}

// ListJobs returns every job of the account matching filter, following
// pagination until the reported total is reached.
func (c *Client) ListJobs(ctx context.Context, filter ports.JobFilter) ([]job.Job, error) {
	var envID *int
	if len(filter.EnvironmentIDs) == 1 {
		envID = &filter.EnvironmentIDs[0]
	}

	var jobs []job.Job
	offset := 0
	for {
		env, err := c.do(ctx, request{
			op:     "list jobs",
			method: http.MethodGet,
			path:   c.v2("/jobs/"),
			query:  buildJobQuery(filter.ProjectIDs, envID, offset),
		})
		if err != nil {
			return nil, err
		}

		var page []json.RawMessage
		if err := json.Unmarshal(env.Data, &page); err != nil {
			return nil, c.decodeError("list jobs", err)
		}
		for _, raw := range page {
			j, err := job.FromRemote(raw)
			if err != nil {
				return nil, c.decodeError("list jobs", err)
			}
			if len(filter.EnvironmentIDs) > 1 && !slices.Contains(filter.EnvironmentIDs, j.EnvironmentID) {
				continue
			}
			jobs = append(jobs, *j)
		}

		limit := env.Extra.Filters.Limit
		if len(page) == 0 || limit <= 0 || env.Extra.Filters.Offset+limit >= env.Extra.Pagination.TotalCount {
			break
		}
		offset += limit
	}

	c.logger.Debug(ctx, "listed remote jobs", ports.F("count", len(jobs)))
	return jobs, nil
}

// GetJob fetches a single job by id.
func (c *Client) GetJob(ctx context.Context, jobID int) (*job.Job, error) {
	env, err := c.do(ctx, request{
		op:     fmt.Sprintf("get job %d", jobID),
		method: http.MethodGet,
		path:   c.v2("/jobs/%d/", jobID),
	})
	if err != nil {
		return nil, err
	}
	j, err := job.FromRemote(env.Data)
	if err != nil {
		return nil, c.decodeError("get job", err)
	}
	return j, nil
}

// CreateJob creates j and returns the job as stored remotely.
func (c *Client) CreateJob(ctx context.Context, j *job.Job) (*job.Job, error) {
	return c.writeJob(ctx, "create job "+j.Identifier, c.v2("/jobs/"), j)
}

// UpdateJob replaces the remote job j.ID with j.
func (c *Client) UpdateJob(ctx context.Context, j *job.Job) (*job.Job, error) {
	if j.ID == nil {
		return nil, &ports.RemoteError{Op: "update job " + j.Identifier, Err: fmt.Errorf("job has no remote id")}
	}
	return c.writeJob(ctx, "update job "+j.Identifier, c.v2("/jobs/%d/", *j.ID), j)
}

func (c *Client) writeJob(ctx context.Context, op, path string, j *job.Job) (*job.Job, error) {
	body, err := j.Payload()
	if err != nil {
		return nil, &ports.RemoteError{Op: op, Err: err}
	}
	env, err := c.do(ctx, request{op: op, method: http.MethodPost, path: path, body: body})
	if err != nil {
		return nil, err
	}
	out, err := job.FromRemote(env.Data)
	if err != nil {
		return nil, c.decodeError(op, err)
	}
	return out, nil
}

// DeleteJob deletes the remote job j.ID.
func (c *Client) DeleteJob(ctx context.Context, j *job.Job) error {
	op := "delete job " + j.Identifier
	if j.ID == nil {
		return &ports.RemoteError{Op: op, Err: fmt.Errorf("job has no remote id")}
	}
	_, err := c.do(ctx, request{op: op, method: http.MethodDelete, path: c.v2("/jobs/%d/", *j.ID)})
	return err
}

func (c *Client) decodeError(op string, err error) error {
	return &ports.RemoteError{Op: op, Err: err}
}
