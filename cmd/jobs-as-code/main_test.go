package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobs-as-code/internal/app"
	settings "github.com/felixgeelhaar/jobs-as-code/internal/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/changeset"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
	"github.com/felixgeelhaar/jobs-as-code/internal/testutil"
)

// Commands share package-level flag state, so these tests do not run in
// parallel.

const dailyYAML = `
jobs:
  daily:
    account_id: 1
    project_id: 100
    environment_id: 200
    name: Daily
    linked_id: 50
    execute_steps:
      - dbt build
    schedule:
      cron: "0 6 * * *"
    triggers:
      schedule: true
`

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, fake *testutil.FakeJobsAPI, args ...string) result {
	t.Helper()
	return executeContext(t, context.Background(), fake, args...)
}

func executeContext(t *testing.T, ctx context.Context, fake *testutil.FakeJobsAPI, args ...string) result {
	t.Helper()

	restore := newClient
	newClient = func(*settings.Settings, ports.Logger) app.ClientFactory {
		return func(int) (ports.JobsAPI, error) { return fake, nil }
	}
	t.Cleanup(func() {
		newClient = restore
		resetFlags(rootCmd)
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	setContext(rootCmd, ctx)
	err := rootCmd.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// setContext replaces the context subcommands kept from an earlier run.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeConfig(t *testing.T) string {
	t.Helper()
	return testutil.WriteTempFile(t, t.TempDir(), "jobs.yml", dailyYAML)
}

func overrideConfirm(t *testing.T, answer bool) *bool {
	t.Helper()
	asked := false
	restore := confirmSync
	confirmSync = func(*cobra.Command, changeset.Report) (bool, error) {
		asked = true
		return answer, nil
	}
	t.Cleanup(func() { confirmSync = restore })
	return &asked
}

func TestVersionCmd(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "jobs-as-code dev")
	assert.Contains(t, res.stdout, "commit: none")
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"plan", "sync", "validate", "import-jobs", "link", "unlink", "deactivate-jobs", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestPlanCmd_Table(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "plan", writeConfig(t))
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Changes detected")
	assert.Contains(t, res.stdout, "CREATE")
	assert.Contains(t, res.stdout, "daily")
}

func TestPlanCmd_JSON(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "plan", writeConfig(t), "--json")
	require.NoError(t, res.err)

	var report changeset.Report
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	require.Len(t, report.JobChanges, 1)
	assert.Equal(t, "CREATE", report.JobChanges[0].Action)
	assert.Equal(t, "daily", report.JobChanges[0].Identifier)
}

func TestPlanCmd_NoChanges(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "plan", writeConfig(t), "-e", "999")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Warning: job daily is outside")
	assert.Contains(t, res.stdout, "No changes detected.")
}

func TestPlanCmd_LimitWithIDs(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "plan", writeConfig(t), "-l", "-p", "100")
	require.Error(t, res.err)
	assert.True(t, config.IsUserError(res.err, config.ErrCodeInvalidFlags))
	assert.Contains(t, formatError(res.err), "cannot be combined")
}

func TestPlanCmd_RequiresConfig(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "plan")
	require.Error(t, res.err)
}

func TestSyncCmd_Yes(t *testing.T) {
	asked := overrideConfirm(t, false)
	fake := testutil.NewFakeJobsAPI()

	res := execute(t, fake, "sync", writeConfig(t), "--yes")
	require.NoError(t, res.err)
	assert.False(t, *asked)
	assert.Contains(t, fake.Calls(), "CreateJob:daily")
	assert.Contains(t, res.stdout, "daily")
}

func TestSyncCmd_Declined(t *testing.T) {
	asked := overrideConfirm(t, false)
	fake := testutil.NewFakeJobsAPI()

	res := execute(t, fake, "sync", writeConfig(t))
	require.NoError(t, res.err)
	assert.True(t, *asked)
	assert.Contains(t, res.stderr, "Sync cancelled.")
	assert.NotContains(t, fake.Calls(), "CreateJob:daily")
}

func TestSyncCmd_FailedChange(t *testing.T) {
	overrideConfirm(t, true)
	fake := testutil.NewFakeJobsAPI()
	fake.FailOn("CreateJob:daily")

	res := execute(t, fake, "sync", writeConfig(t), "--json")
	require.ErrorIs(t, res.err, errApplyFailed)

	var report changeset.Report
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.False(t, report.ApplySuccess)
	require.Len(t, report.JobChanges, 1)
	assert.Contains(t, report.JobChanges[0].Error, "injected failure")
}

func TestSyncCmd_AbortedPrintsReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	restore := confirmSync
	confirmSync = func(*cobra.Command, changeset.Report) (bool, error) {
		cancel()
		return true, nil
	}
	t.Cleanup(func() { confirmSync = restore })
	fake := testutil.NewFakeJobsAPI()

	res := executeContext(t, ctx, fake, "sync", writeConfig(t), "--json")
	require.ErrorIs(t, res.err, context.Canceled)
	assert.NotContains(t, fake.Calls(), "CreateJob:daily")

	var report changeset.Report
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	require.Len(t, report.JobChanges, 1)
	assert.Equal(t, "daily", report.JobChanges[0].Identifier)
	assert.Nil(t, report.JobChanges[0].ResultID)
}

func TestSyncCmd_WritesMetrics(t *testing.T) {
	dir := t.TempDir()
	textfile := filepath.Join(dir, "jobs.prom")
	settingsPath := testutil.WriteTempFile(t, dir, "settings.yaml", "metrics:\n  textfile: "+textfile+"\n")

	res := execute(t, testutil.NewFakeJobsAPI(), "sync", writeConfig(t), "--yes", "--settings", settingsPath)
	require.NoError(t, res.err)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `jobs_as_code_runs_total{result="success"} 1`)
	assert.Contains(t, string(data), "jobs_as_code_changes_total")
}

func TestValidateCmd(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "validate", writeConfig(t))
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "valid YML format (1 jobs)")
}

func TestValidateCmd_OnlineInvalid(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "validate", writeConfig(t), "--online")
	require.ErrorIs(t, res.err, errInvalidIDs)
	assert.Contains(t, res.stdout, "❌ the following project ids are not valid: [100]")
}

func TestValidateCmd_InvalidCron(t *testing.T) {
	path := testutil.WriteTempFile(t, t.TempDir(), "jobs.yml", `
jobs:
  broken:
    account_id: 1
    project_id: 100
    environment_id: 200
    name: Broken
    schedule:
      cron: "not a cron"
`)
	res := execute(t, testutil.NewFakeJobsAPI(), "validate", path)
	require.Error(t, res.err)
	assert.Contains(t, formatError(res.err), "cron")
}

func TestImportCmd(t *testing.T) {
	fake := testutil.NewFakeJobsAPI()
	fake.AddJob(testutil.NewJobBuilder("daily").Build())

	res := execute(t, fake, "import-jobs", "--account-id", "1", "--include-linked-id")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "jobs:")
	assert.Contains(t, res.stdout, "daily:")
	assert.Contains(t, res.stdout, "linked_id: 1001")
}

func TestImportCmd_NeedsAccount(t *testing.T) {
	res := execute(t, testutil.NewFakeJobsAPI(), "import-jobs")
	require.Error(t, res.err)
	assert.Contains(t, formatError(res.err), "either --config or --account-id")
}

func TestLinkCmd_DryRun(t *testing.T) {
	fake := testutil.NewFakeJobsAPI()
	fake.AddJob(testutil.NewJobBuilder("").Unmanaged().WithID(50).WithName("Adopted").Build())

	res := execute(t, fake, "link", writeConfig(t), "--dry-run")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Would link 50:Adopted [[daily]]")
	assert.NotContains(t, fake.Calls(), "UpdateJob:50")
}

func TestUnlinkCmd(t *testing.T) {
	fake := testutil.NewFakeJobsAPI()
	fake.AddJob(testutil.NewJobBuilder("daily").Build())
	fake.AddJob(testutil.NewJobBuilder("weekly").Build())

	res := execute(t, fake, "unlink", "--account-id", "1", "-i", "weekly")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Unlinked 1002:Job weekly")

	weekly, _ := fake.Job(1002)
	assert.False(t, weekly.Managed())
	daily, _ := fake.Job(1001)
	assert.True(t, daily.Managed())
}

func TestDeactivateCmd(t *testing.T) {
	fake := testutil.NewFakeJobsAPI()
	fake.AddJob(testutil.NewJobBuilder("daily").Build())

	res := execute(t, fake, "deactivate-jobs", "--config", writeConfig(t), "-j", "1001")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Deactivated 1001:Job daily")

	daily, _ := fake.Job(1001)
	assert.True(t, daily.Triggers.Off())
}

func TestFormatError(t *testing.T) {
	list := config.NewErrorList()
	list.Add(config.NewUserError(config.ErrCodeValidationFailed, "first"))
	list.Add(config.NewUserError(config.ErrCodeValidationFailed, "second"))

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name: "user error with suggestion",
			err: config.NewUserError(config.ErrCodeConfigNotFound, "no jobs file found").
				WithContext("jobs.yml").
				WithSuggestion("Check the path"),
			contains: "no jobs file found (at jobs.yml)\n\nSuggestion: Check the path",
		},
		{
			name:     "error list",
			err:      list,
			contains: "second",
		},
		{
			name:     "remote error",
			err:      &ports.RemoteError{Op: "create job", Method: "POST", URL: "https://x", StatusCode: 400, Body: "bad name"},
			contains: "create job failed with status 400: bad name",
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			contains: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, formatError(tt.err), tt.contains)
		})
	}
}

func TestPrintErrorTo(t *testing.T) {
	var buf bytes.Buffer
	printErrorTo(&buf, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}
