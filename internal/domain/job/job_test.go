package job

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func intPtr(v int) *int { return &v }

func TestExtractIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    IdentifierInfo
		wantErr bool
	}{
		{name: "no suffix", input: "Daily run", want: IdentifierInfo{}},
		{name: "identifier", input: "Daily run [[daily]]", want: IdentifierInfo{Identifier: "daily", Raw: "daily"}},
		{name: "filter and identifier", input: "Daily [[prod:daily-1]]", want: IdentifierInfo{Identifier: "daily-1", ImportFilter: "prod", Raw: "prod:daily-1"}},
		{name: "wildcard filter", input: "Daily [[*:daily]]", want: IdentifierInfo{Identifier: "daily", ImportFilter: "*", Raw: "*:daily"}},
		{name: "too many colons", input: "Daily [[a:b:c]]", wantErr: true},
		{name: "invalid characters ignored", input: "Daily [[not valid]]", want: IdentifierInfo{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractIdentifier(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromRemote(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"id": 42,
		"account_id": 1,
		"project_id": 2,
		"environment_id": 3,
		"name": "Nightly [[prod:nightly]]",
		"settings": {"threads": 8, "target_name": "prod"},
		"schedule": {"cron": "0 2 * * *", "date": {"type": "every_day"}},
		"execute_steps": ["dbt build"],
		"created_at": "2024-01-01"
	}`)

	j, err := FromRemote(payload)
	require.NoError(t, err)

	assert.Equal(t, 42, j.RemoteID())
	assert.Equal(t, "Nightly", j.Name)
	assert.Equal(t, "nightly", j.Identifier)
	assert.Equal(t, "prod", j.ImportFilter)
	assert.True(t, j.Managed())
	assert.Equal(t, &Date{Type: "custom_cron", Cron: "0 2 * * *"}, j.Schedule.Date)
	assert.Equal(t, &Time{Type: "every_hour", Interval: 1}, j.Schedule.Time)
	assert.Equal(t, 8, j.Settings.Threads)
	assert.Equal(t, DefaultJobType, j.JobType)
}

func TestFromRemote_Unmanaged(t *testing.T) {
	t.Parallel()

	j, err := FromRemote([]byte(`{"id": 1, "name": "Ad hoc", "schedule": {"cron": "* * * * *"}}`))
	require.NoError(t, err)
	assert.False(t, j.Managed())
	assert.Equal(t, "Ad hoc", j.Name)
}

func TestFromRemote_KeepsExplicitZeroes(t *testing.T) {
	t.Parallel()

	j, err := FromRemote([]byte(`{
		"id": 7,
		"name": "Zeroed",
		"settings": {"threads": 0, "target_name": "prod"},
		"state": 0,
		"compare_changes_flags": "",
		"schedule": {"cron": "0 * * * *"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 0, j.Settings.Threads)
	assert.Equal(t, "prod", j.Settings.TargetName)
	assert.Equal(t, 0, j.State)
	assert.Empty(t, j.CompareChangesFlags)
	assert.Equal(t, DefaultJobType, j.JobType)
}

func TestNew(t *testing.T) {
	t.Parallel()

	j := New()
	assert.Equal(t, DefaultThreads, j.Settings.Threads)
	assert.Equal(t, DefaultTargetName, j.Settings.TargetName)
	assert.Equal(t, DefaultState, j.State)
	assert.Equal(t, DefaultCompareChangesFlags, j.CompareChangesFlags)
	assert.Equal(t, DefaultJobType, j.JobType)
}

func TestNormalize_Defaults(t *testing.T) {
	t.Parallel()

	j := &Job{
		Name:     "x",
		Schedule: Schedule{Cron: "0 * * * *"},
		JobCompletionTriggerCondition: &JobCompletionTriggerCondition{
			Condition: Condition{JobID: 1, ProjectID: 2},
		},
	}
	j.Normalize()

	assert.Equal(t, DefaultThreads, j.Settings.Threads)
	assert.Equal(t, DefaultTargetName, j.Settings.TargetName)
	assert.Equal(t, DefaultState, j.State)
	assert.Equal(t, DefaultCompareChangesFlags, j.CompareChangesFlags)
	assert.Equal(t, DefaultJobType, j.JobType)
	assert.Equal(t, 0, j.Execution.TimeoutSeconds)
	assert.Equal(t, []string{}, j.ExecuteSteps)
	assert.Equal(t, []int{10, 20, 30}, j.JobCompletionTriggerCondition.Condition.Statuses)
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	j := &Job{
		Settings: Settings{Threads: 16, TargetName: "ci"},
		JobType:  "ci",
		Schedule: Schedule{Cron: "5 4 * * *", Date: &Date{Type: "every_day"}},
	}
	j.Normalize()
	j.Normalize()

	assert.Equal(t, 16, j.Settings.Threads)
	assert.Equal(t, "ci", j.Settings.TargetName)
	assert.Equal(t, "ci", j.JobType)
	assert.Equal(t, "custom_cron", j.Schedule.Date.Type)
}

func TestJob_Payload(t *testing.T) {
	t.Parallel()

	j := &Job{
		LinkedID:                   intPtr(9),
		Identifier:                 "daily",
		AccountID:                  1,
		ProjectID:                  2,
		EnvironmentID:              3,
		Name:                       "Daily",
		Schedule:                   Schedule{Cron: "0 0 * * *"},
		CustomEnvironmentVariables: EnvVars{{Name: "DBT_A", Value: "1"}},
	}
	j.Normalize()

	data, err := j.Payload()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "Daily [[daily]]", fields["name"])
	assert.NotContains(t, fields, "linked_id")
	assert.NotContains(t, fields, "identifier")
	assert.NotContains(t, fields, "custom_environment_variables")
	assert.NotContains(t, fields, "id")
	assert.Equal(t, float64(2), fields["project_id"])
}

func TestJob_URL(t *testing.T) {
	t.Parallel()

	j := &Job{ID: intPtr(7), AccountID: 1, ProjectID: 2}
	assert.Equal(t, "https://cloud.getdbt.com/deploy/1/projects/2/jobs/7", j.URL("https://cloud.getdbt.com/"))
}

func TestJob_Clone(t *testing.T) {
	t.Parallel()

	j := &Job{ID: intPtr(1), ExecuteSteps: []string{"dbt run"}, CustomEnvironmentVariables: EnvVars{{Name: "DBT_A"}}}
	c := j.Clone()
	*c.ID = 2
	c.ExecuteSteps[0] = "dbt test"
	c.CustomEnvironmentVariables[0].Name = "DBT_B"

	assert.Equal(t, 1, *j.ID)
	assert.Equal(t, "dbt run", j.ExecuteSteps[0])
	assert.Equal(t, "DBT_A", j.CustomEnvironmentVariables[0].Name)
}

func TestMatchesImportFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		jobFilter string
		filter    string
		want      bool
	}{
		{"", "prod", true},
		{"*", "prod", true},
		{"prod", "", true},
		{"prod-eu", "prod", true},
		{"dev", "prod", false},
	}
	for _, tt := range tests {
		j := &Job{ImportFilter: tt.jobFilter}
		assert.Equal(t, tt.want, j.MatchesImportFilter(tt.filter), "job filter %q, filter %q", tt.jobFilter, tt.filter)
	}
}

func TestEnvVars_YAML(t *testing.T) {
	t.Parallel()

	src := `
- DBT_STRING: hello
- DBT_NUMBER: 12
- DBT_BOOL: true
- DBT_EMPTY:
`
	var vars EnvVars
	require.NoError(t, yaml.Unmarshal([]byte(src), &vars))
	assert.Equal(t, EnvVars{
		{Name: "DBT_STRING", Value: "hello"},
		{Name: "DBT_NUMBER", Value: "12"},
		{Name: "DBT_BOOL", Value: "true"},
		{Name: "DBT_EMPTY", Value: ""},
	}, vars)

	out, err := yaml.Marshal(EnvVars{{Name: "DBT_A", Value: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "- DBT_A: x\n", string(out))
}

func TestEnvVars_YAMLRejectsMultiKeyItems(t *testing.T) {
	t.Parallel()

	var vars EnvVars
	err := yaml.Unmarshal([]byte("- DBT_A: 1\n  DBT_B: 2\n"), &vars)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single key/value pair")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Job {
		return &Job{
			Identifier:    "daily",
			AccountID:     1,
			ProjectID:     2,
			EnvironmentID: 3,
			Name:          "Daily",
			Schedule:      Schedule{Cron: "0 0 * * *"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, valid().Validate())
	})

	t.Run("bad cron", func(t *testing.T) {
		t.Parallel()
		j := valid()
		j.Schedule.Cron = "every day"
		err := j.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schedule.cron")
	})

	t.Run("missing scope", func(t *testing.T) {
		t.Parallel()
		j := valid()
		j.ProjectID = 0
		j.EnvironmentID = 0
		err := j.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "project_id")
		assert.Contains(t, err.Error(), "environment_id")
	})

	t.Run("bad env var names", func(t *testing.T) {
		t.Parallel()
		j := valid()
		j.CustomEnvironmentVariables = EnvVars{{Name: "FOO"}, {Name: "DBT_lower"}, {Name: "DBT_OK"}, {Name: "DBT_OK"}}
		err := j.Validate()
		require.Error(t, err)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, err.Error(), `"FOO"`)
		assert.Contains(t, err.Error(), `"DBT_lower"`)
		assert.Contains(t, err.Error(), "more than once")
	})
}
