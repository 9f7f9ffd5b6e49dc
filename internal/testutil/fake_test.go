package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

func TestFakeJobsAPI_JobLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := NewFakeJobsAPI()

	created, err := api.CreateJob(ctx, NewJobBuilder("daily").Build())
	require.NoError(t, err)
	require.NotNil(t, created.ID)

	jobs, err := api.ListJobs(ctx, ports.JobFilter{ProjectIDs: []int{ProjectID}})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "daily", jobs[0].Identifier)

	jobs, err = api.ListJobs(ctx, ports.JobFilter{EnvironmentIDs: []int{999}})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	require.NoError(t, api.DeleteJob(ctx, created))
	_, ok := api.Job(*created.ID)
	assert.False(t, ok)

	assert.Equal(t, []string{"CreateJob:daily", "ListJobs", "ListJobs", "DeleteJob:1001"}, api.Calls())
}

func TestFakeJobsAPI_EnvVars(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := NewFakeJobsAPI()
	stored := api.AddJob(NewJobBuilder("daily").Build())
	jobID := *stored.ID

	varID := api.AddEnvVar(jobID, "DBT_A", "1")
	api.AddInheritedEnvVar(jobID, "DBT_B")

	vars, err := api.ListEnvVars(ctx, ProjectID, jobID)
	require.NoError(t, err)
	assert.False(t, vars["DBT_A"].Inherited())
	assert.True(t, vars["DBT_B"].Inherited())

	updated, err := api.UpsertEnvVar(ctx, ProjectID, jobID, job.EnvVar{Name: "DBT_A", Value: "2"}, &varID)
	require.NoError(t, err)
	assert.Equal(t, varID, *updated.ID)
	assert.Equal(t, "2", api.EnvVars(jobID)["DBT_A"].Value)

	require.NoError(t, api.DeleteEnvVar(ctx, ProjectID, varID))
	assert.NotContains(t, api.EnvVars(jobID), "DBT_A")
}

func TestFakeJobsAPI_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := NewFakeJobsAPI()
	api.FailOn("CreateJob:daily")

	_, err := api.CreateJob(ctx, NewJobBuilder("daily").Build())
	var remote *ports.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 500, remote.StatusCode)

	boom := errors.New("boom")
	api.FailWith("ListJobs", boom)
	_, err = api.ListJobs(ctx, ports.JobFilter{})
	assert.ErrorIs(t, err, boom)
}
