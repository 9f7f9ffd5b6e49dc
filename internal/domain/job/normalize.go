package job

import (
	"dario.cat/mergo"
)

// Defaults applied to unset fields.
const (
	DefaultThreads             = 4
	DefaultTargetName          = "default"
	DefaultState               = 1
	DefaultCompareChangesFlags = "--select state:modified"
	DefaultJobType             = "scheduled"
)

// DefaultStatuses are the run statuses that fire a completion trigger.
var DefaultStatuses = []int{10, 20, 30}

func defaults() Job {
	return Job{
		Settings: Settings{
			Threads:    DefaultThreads,
			TargetName: DefaultTargetName,
		},
		State:               DefaultState,
		CompareChangesFlags: DefaultCompareChangesFlags,
		JobType:             DefaultJobType,
	}
}

// New returns a job holding the defaults. Decoding a document into it keeps
// the defaults of absent keys only, so an explicit zero survives.
func New() *Job {
	j := &Job{}
	// mergo only writes zero-valued destination fields, so a valid src
	// never fails.
	_ = mergo.Merge(j, defaults())
	return j
}

// Normalize fills every zero-valued defaulted field, then derives the
// computed fields. It suits jobs built in code; decoded jobs start from New
// and only need Derive. It is idempotent.
func (j *Job) Normalize() {
	_ = mergo.Merge(j, defaults())
	j.Derive()
}

// Derive sets the schedule display fields from the cron expression and the
// list defaults. It is idempotent.
func (j *Job) Derive() {
	j.Schedule.Date = &Date{Type: "custom_cron", Cron: j.Schedule.Cron}
	j.Schedule.Time = &Time{Type: "every_hour", Interval: 1}

	if j.ExecuteSteps == nil {
		j.ExecuteSteps = []string{}
	}
	if c := j.JobCompletionTriggerCondition; c != nil && len(c.Condition.Statuses) == 0 {
		c.Condition.Statuses = append([]int(nil), DefaultStatuses...)
	}
}
