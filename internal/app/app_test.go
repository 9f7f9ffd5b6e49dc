package app

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
	"github.com/felixgeelhaar/jobs-as-code/internal/testutil"
)

const jobsYAML = `
jobs:
  daily:
    account_id: 1
    project_id: 100
    environment_id: 200
    name: Daily
    execute_steps:
      - dbt build
    schedule:
      cron: "0 6 * * *"
    triggers:
      schedule: true
    custom_environment_variables:
      - DBT_TARGET: prod
  weekly:
    account_id: 1
    project_id: 101
    environment_id: 201
    name: Weekly
    linked_id: 50
    schedule:
      cron: "0 6 * * 1"
`

type fixture struct {
	app      *App
	fake     *testutil.FakeJobsAPI
	out      *bytes.Buffer
	accounts []int
	config   string
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()

	f := &fixture{fake: testutil.NewFakeJobsAPI(), out: &bytes.Buffer{}}
	if content != "" {
		f.config = testutil.WriteTempFile(t, t.TempDir(), "jobs.yml", content)
	}
	f.app = New(func(accountID int) (ports.JobsAPI, error) {
		f.accounts = append(f.accounts, accountID)
		return f.fake, nil
	}, f.out).WithBaseURL("https://cloud.example.com")
	return f
}

func (f *fixture) planOptions() PlanOptions {
	return PlanOptions{ConfigPatterns: []string{f.config}}
}

type entryKey struct {
	Action     string
	Identifier string
}

func keys(entries []changeset.ReportEntry) []entryKey {
	out := make([]entryKey, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryKey{Action: e.Action, Identifier: e.Identifier})
	}
	return out
}

func codes(ws []changeset.Warning) []changeset.WarningCode {
	out := make([]changeset.WarningCode, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// seedRemote stores daily (1001, renamed), legacy (1002) and an unmanaged
// job (1003); daily carries a stale override (1004).
func seedRemote(fake *testutil.FakeJobsAPI) {
	fake.AddJob(testutil.NewJobBuilder("daily").WithName("Old daily").Build())
	fake.AddJob(testutil.NewJobBuilder("legacy").Build())
	fake.AddJob(testutil.NewJobBuilder("").Unmanaged().WithName("Ad hoc").Build())
	fake.AddEnvVar(1001, "OLD", "x")
}

func TestPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	seedRemote(f.fake)

	cs, err := f.app.Plan(context.Background(), f.planOptions())
	require.NoError(t, err)

	r := cs.Report()
	assert.Equal(t, []entryKey{
		{"UPDATE", "daily"},
		{"CREATE", "weekly"},
		{"DELETE", "legacy"},
	}, keys(r.JobChanges))
	assert.Equal(t, []entryKey{
		{"CREATE", "daily:DBT_TARGET"},
		{"DELETE", "daily:OLD"},
	}, keys(r.EnvVarOverwriteChanges))
	assert.Empty(t, r.Warnings)
	assert.Equal(t, []int{1}, f.accounts)
	assert.NotContains(t, f.fake.Calls(), "CreateJob:weekly")
}

func TestPlan_LimitToYAMLWithIDs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	opts := f.planOptions()
	opts.LimitToYAML = true
	opts.ProjectIDs = []int{100}

	_, err := f.app.Plan(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, config.IsUserError(err, config.ErrCodeInvalidFlags))
	assert.Empty(t, f.fake.Calls())
}

func TestPlan_FiltersJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	seedRemote(f.fake)
	opts := f.planOptions()
	opts.ProjectIDs = []int{100}

	cs, err := f.app.Plan(context.Background(), opts)
	require.NoError(t, err)

	r := cs.Report()
	assert.Equal(t, []entryKey{{"UPDATE", "daily"}, {"DELETE", "legacy"}}, keys(r.JobChanges))
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, changeset.WarnJobFiltered, r.Warnings[0].Code)
	assert.Equal(t, "weekly", r.Warnings[0].Identifier)
}

func TestPlan_NoJobsLeft(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	opts := f.planOptions()
	opts.EnvironmentIDs = []int{999}

	cs, err := f.app.Plan(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.Equal(t, []changeset.WarningCode{
		changeset.WarnJobFiltered,
		changeset.WarnJobFiltered,
		changeset.WarnNoJobs,
	}, codes(cs.Warnings))
	assert.Empty(t, f.accounts)
}

func TestPlan_LimitToYAML(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	f.fake.AddJob(testutil.NewJobBuilder("elsewhere").WithScope(300, 400).Build())
	opts := f.planOptions()
	opts.LimitToYAML = true

	cs, err := f.app.Plan(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []entryKey{{"CREATE", "daily"}, {"CREATE", "weekly"}}, keys(cs.Report().JobChanges))
}

func TestPlan_MultipleAccounts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML+`
  other:
    account_id: 2
    project_id: 100
    environment_id: 200
    name: Other
    schedule:
      cron: "0 7 * * *"
`)

	cs, err := f.app.Plan(context.Background(), f.planOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, f.accounts)
	assert.Contains(t, codes(cs.Warnings), changeset.WarnMultipleAccounts)
}

func TestPlan_ListJobsFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	f.fake.FailOn("ListJobs")

	_, err := f.app.Plan(context.Background(), f.planOptions())
	var remote *ports.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "ListJobs", remote.Op)
}

func TestPlan_MissingConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	_, err := f.app.Plan(context.Background(), PlanOptions{ConfigPatterns: []string{t.TempDir() + "/missing.yml"}})
	require.Error(t, err)
	assert.True(t, config.IsUserError(err, config.ErrCodeConfigNotFound))
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) Observe(_, _, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func TestSync(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	seedRemote(f.fake)
	rec := &countingRecorder{}
	f.app.WithRecorder(rec)

	var confirmed changeset.Report
	cs, err := f.app.Sync(context.Background(), SyncOptions{
		PlanOptions: f.planOptions(),
		Confirm: func(r changeset.Report) (bool, error) {
			confirmed = r
			return true, nil
		},
	})
	require.NoError(t, err)
	assert.True(t, cs.ApplySuccess())
	assert.Len(t, confirmed.JobChanges, 3)
	assert.Equal(t, 5, rec.outcomes["success"])

	daily, ok := f.fake.Job(1001)
	require.True(t, ok)
	assert.Equal(t, "Daily", daily.Name)
	assert.Equal(t, "daily", daily.Identifier)

	_, ok = f.fake.Job(1002)
	assert.False(t, ok, "legacy is deleted")

	vars := f.fake.EnvVars(1001)
	assert.Contains(t, vars, "DBT_TARGET")
	assert.NotContains(t, vars, "OLD")
	assert.Contains(t, f.fake.Calls(), "CreateJob:weekly")
}

func TestSync_Declined(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)

	cs, err := f.app.Sync(context.Background(), SyncOptions{
		PlanOptions: f.planOptions(),
		Confirm:     func(changeset.Report) (bool, error) { return false, nil },
	})
	require.ErrorIs(t, err, ErrSyncDeclined)
	assert.Equal(t, 3, cs.Len())
	assert.NotContains(t, f.fake.Calls(), "CreateJob:daily")
}

func TestSync_RemoteFailureIsNotAnError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	f.fake.FailOn("CreateJob:weekly")

	cs, err := f.app.Sync(context.Background(), SyncOptions{PlanOptions: f.planOptions(), Parallelism: 2})
	require.NoError(t, err)
	assert.False(t, cs.ApplySuccess())
	require.Len(t, cs.Failures(), 1)
	assert.Equal(t, "weekly", cs.Failures()[0].Identifier)
}

func TestSync_NothingToDo(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	opts := f.planOptions()
	opts.ProjectIDs = []int{999}

	called := false
	cs, err := f.app.Sync(context.Background(), SyncOptions{
		PlanOptions: opts,
		Confirm:     func(changeset.Report) (bool, error) { called = true; return true, nil },
	})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.False(t, called)
}

func TestValidate_Offline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)

	v, err := f.app.Validate(context.Background(), ValidateOptions{ConfigPatterns: []string{f.config}})
	require.NoError(t, err)
	assert.True(t, v.Valid())
	assert.Equal(t, 2, v.Jobs)
	assert.Empty(t, f.accounts)
}

func TestValidate_Online(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML+`
  deferred:
    account_id: 1
    project_id: 100
    environment_id: 200
    name: Deferred
    deferring_job_definition_id: 77
    deferring_environment_id: 200
    schedule:
      cron: "0 8 * * *"
`)
	f.fake.AddEnvironment(ports.Environment{ID: 200, ProjectID: 100, Name: "prod"})

	v, err := f.app.Validate(context.Background(), ValidateOptions{ConfigPatterns: []string{f.config}, Online: true})
	require.NoError(t, err)
	assert.False(t, v.Valid())
	assert.Equal(t, []string{
		"the following project ids are not valid: [101]",
		"the following environment ids are not valid: [201]",
		"the following deferring job ids are not valid: [77]",
	}, v.Issues)
}

func TestValidate_OnlineValid(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	f.fake.AddEnvironment(ports.Environment{ID: 200, ProjectID: 100})
	f.fake.AddEnvironment(ports.Environment{ID: 201, ProjectID: 101})

	v, err := f.app.Validate(context.Background(), ValidateOptions{ConfigPatterns: []string{f.config}, Online: true})
	require.NoError(t, err)
	assert.True(t, v.Valid())
	assert.Equal(t, []string{"ListEnvironments"}, f.fake.Calls())
}

func TestImport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	seedRemote(f.fake)
	f.fake.AddEnvVar(1001, "DBT_TARGET", "prod")
	f.fake.AddInheritedEnvVar(1001, "GLOBAL")

	jobs, err := f.app.Import(context.Background(), ImportOptions{
		Selection:   Selection{AccountID: 1},
		ManagedOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	out := f.out.String()
	assert.Contains(t, out, "daily:")
	assert.Contains(t, out, "legacy:")
	assert.Contains(t, out, "DBT_TARGET: prod")
	assert.NotContains(t, out, "GLOBAL")
	assert.NotContains(t, out, "Ad hoc")
	assert.Equal(t, []int{1}, f.accounts)
}

func TestImport_JobIDs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	seedRemote(f.fake)

	jobs, err := f.app.Import(context.Background(), ImportOptions{
		Selection: Selection{AccountID: 1, JobIDs: []int{1003, 9999}},
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Ad hoc", jobs[0].Name)
	assert.Contains(t, f.fake.Calls(), "GetJob:9999")
	assert.Contains(t, f.out.String(), "import_1:")
}

func TestImport_JobIDsWithinProject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	seedRemote(f.fake)

	jobs, err := f.app.Import(context.Background(), ImportOptions{
		Selection: Selection{AccountID: 1, ProjectIDs: []int{testutil.ProjectID}, JobIDs: []int{1002}},
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "legacy", jobs[0].Identifier)
	assert.NotContains(t, f.fake.Calls(), "GetJob:1002")
}

func TestImport_Filter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	prod := testutil.NewJobBuilder("daily").Build()
	prod.ImportFilter = "prod"
	f.fake.AddJob(prod)
	wildcard := testutil.NewJobBuilder("nightly").Build()
	wildcard.ImportFilter = "*"
	f.fake.AddJob(wildcard)

	jobs, err := f.app.Import(context.Background(), ImportOptions{
		Selection: Selection{AccountID: 1},
		Filter:    "dev",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "nightly", jobs[0].Identifier)
}

func TestImport_AccountFromConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)

	_, err := f.app.Import(context.Background(), ImportOptions{
		Selection: Selection{ConfigPatterns: []string{f.config}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, f.accounts)
}

func TestImport_NoAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	_, err := f.app.Import(context.Background(), ImportOptions{})
	require.Error(t, err)
	assert.True(t, config.IsUserError(err, config.ErrCodeInvalidFlags))
}

func TestImport_Templates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	f.fake.AddJob(testutil.NewJobBuilder("daily").Build())
	templates := testutil.WriteTempFile(t, t.TempDir(), "fields.yml", "environment_id: \"{{ env_id }}\"\n")

	_, err := f.app.Import(context.Background(), ImportOptions{
		Selection:     Selection{AccountID: 1},
		TemplatesPath: templates,
	})
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "{{ env_id }}")
}

func remoteUnmanaged(id, projectID, envID int) *job.Job {
	return testutil.NewJobBuilder("").Unmanaged().WithID(id).WithScope(projectID, envID).Build()
}

func TestLink(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	f.fake.AddJob(remoteUnmanaged(50, 101, 201))

	res, err := f.app.Link(context.Background(), LinkOptions{ConfigPatterns: []string{f.config}})
	require.NoError(t, err)
	require.Len(t, res.Linked, 1)
	require.Len(t, res.Skipped, 1)
	assert.Contains(t, res.Skipped[0], `job "daily" has no linked_id`)

	linked, ok := f.fake.Job(50)
	require.True(t, ok)
	assert.Equal(t, "weekly", linked.Identifier)
}

func TestLink_DryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	f.fake.AddJob(remoteUnmanaged(50, 101, 201))

	res, err := f.app.Link(context.Background(), LinkOptions{ConfigPatterns: []string{f.config}, DryRun: true})
	require.NoError(t, err)
	assert.Len(t, res.Linked, 1)
	assert.NotContains(t, f.fake.Calls(), "UpdateJob:50")

	remote, _ := f.fake.Job(50)
	assert.False(t, remote.Managed())
}

func TestLink_Skips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		seed   func(*testutil.FakeJobsAPI)
		reason string
	}{
		{
			name:   "missing remote job",
			seed:   func(*testutil.FakeJobsAPI) {},
			reason: "job 50 does not exist",
		},
		{
			name: "already managed",
			seed: func(fake *testutil.FakeJobsAPI) {
				fake.AddJob(testutil.NewJobBuilder("other").WithID(50).Build())
			},
			reason: "job 50 is already linked with the identifier other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, jobsYAML)
			tt.seed(f.fake)

			res, err := f.app.Link(context.Background(), LinkOptions{
				ConfigPatterns: []string{f.config},
				ProjectIDs:     []int{101},
			})
			require.NoError(t, err)
			assert.Empty(t, res.Linked)
			require.Len(t, res.Skipped, 1)
			assert.Contains(t, res.Skipped[0], tt.reason)
		})
	}
}

func TestUnlink(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	seedRemote(f.fake)

	unlinked, err := f.app.Unlink(context.Background(), UnlinkOptions{
		Selection:   Selection{AccountID: 1},
		Identifiers: []string{"daily"},
	})
	require.NoError(t, err)
	require.Len(t, unlinked, 1)

	daily, _ := f.fake.Job(1001)
	assert.False(t, daily.Managed())
	legacy, _ := f.fake.Job(1002)
	assert.True(t, legacy.Managed())
}

func TestUnlink_RestrictedToConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jobsYAML)
	seedRemote(f.fake)

	unlinked, err := f.app.Unlink(context.Background(), UnlinkOptions{
		Selection: Selection{ConfigPatterns: []string{f.config}},
	})
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, 1001, unlinked[0].RemoteID())

	legacy, _ := f.fake.Job(1002)
	assert.True(t, legacy.Managed())
}

func TestUnlink_DryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	seedRemote(f.fake)

	unlinked, err := f.app.Unlink(context.Background(), UnlinkOptions{
		Selection: Selection{AccountID: 1},
		DryRun:    true,
	})
	require.NoError(t, err)
	assert.Len(t, unlinked, 2)
	assert.Equal(t, []string{"ListJobs"}, f.fake.Calls())
}

func TestDeactivate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	seedRemote(f.fake)
	off := testutil.NewJobBuilder("off").Build()
	off.Triggers = job.Triggers{}
	stored := f.fake.AddJob(off)

	deactivated, err := f.app.Deactivate(context.Background(), Selection{
		AccountID: 1,
		JobIDs:    []int{1001, stored.RemoteID()},
	})
	require.NoError(t, err)
	require.Len(t, deactivated, 1)
	assert.Equal(t, 1001, deactivated[0].RemoteID())

	daily, _ := f.fake.Job(1001)
	assert.True(t, daily.Triggers.Off())
	assert.Equal(t, "daily", daily.Identifier)
	assert.NotContains(t, f.fake.Calls(), "UpdateJob:"+strconv.Itoa(stored.RemoteID()))

	legacy, _ := f.fake.Job(1002)
	assert.False(t, legacy.Triggers.Off())
}

func TestDeactivate_UpdateFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	seedRemote(f.fake)
	f.fake.FailOn("UpdateJob:1001")

	_, err := f.app.Deactivate(context.Background(), Selection{AccountID: 1})
	var remote *ports.RemoteError
	require.ErrorAs(t, err, &remote)
}
