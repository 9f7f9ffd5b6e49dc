package job

// Schedule holds the cron expression of a job. Date and Time are display
// fields the remote service expects; they are always derived from Cron.
type Schedule struct {
	Cron string `json:"cron" yaml:"cron"`
	Date *Date  `json:"date,omitempty" yaml:"date,omitempty"`
	Time *Time  `json:"time,omitempty" yaml:"time,omitempty"`
}

// Date is the derived date part of a schedule.
type Date struct {
	Type string `json:"type" yaml:"type"`
	Cron string `json:"cron,omitempty" yaml:"cron,omitempty"`
}

// Time is the derived time part of a schedule.
type Time struct {
	Type     string `json:"type" yaml:"type"`
	Interval int    `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// Triggers controls which events start a run.
type Triggers struct {
	GithubWebhook      bool `json:"github_webhook" yaml:"github_webhook"`
	GitProviderWebhook bool `json:"git_provider_webhook" yaml:"git_provider_webhook"`
	Schedule           bool `json:"schedule" yaml:"schedule"`
	OnMerge            bool `json:"on_merge" yaml:"on_merge"`
}

// Off reports whether no trigger is enabled.
func (t Triggers) Off() bool {
	return !t.GithubWebhook && !t.GitProviderWebhook && !t.Schedule && !t.OnMerge
}

// Settings are the dbt runtime settings of a job.
type Settings struct {
	Threads    int    `json:"threads" yaml:"threads"`
	TargetName string `json:"target_name" yaml:"target_name"`
}

// Execution holds run limits.
type Execution struct {
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Condition selects the upstream job whose completion triggers this one.
type Condition struct {
	JobID     int   `json:"job_id" yaml:"job_id"`
	ProjectID int   `json:"project_id" yaml:"project_id"`
	Statuses  []int `json:"statuses" yaml:"statuses,flow"`
}

// JobCompletionTriggerCondition wraps a Condition as the remote API nests it.
type JobCompletionTriggerCondition struct {
	Condition Condition `json:"condition" yaml:"condition"`
}
