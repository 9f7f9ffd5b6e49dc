package job

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/wasilibs/go-re2"
)

var envVarNamePattern = re2.MustCompile(`^DBT_[A-Z0-9_]+$`)

// ValidationError describes one invalid field of a job.
type ValidationError struct {
	Identifier string
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("job %s: %s: %s", e.Identifier, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEnvVarName checks the DBT_ prefix and upper-case rule.
func ValidateEnvVarName(name string) error {
	if !envVarNamePattern.MatchString(name) {
		return fmt.Errorf("environment variable %q must start with DBT_ and be SCREAMING_SNAKE_CASE", name)
	}
	return nil
}

// ValidateCron checks a standard 5-field cron expression.
func ValidateCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Validate returns every problem found in the job, joined.
func (j *Job) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, &ValidationError{Identifier: j.Identifier, Field: field, Message: msg})
	}

	if j.AccountID == 0 {
		add("account_id", "is required")
	}
	if j.ProjectID == 0 {
		add("project_id", "is required")
	}
	if j.EnvironmentID == 0 {
		add("environment_id", "is required")
	}
	if j.Name == "" {
		add("name", "is required")
	}
	if j.Schedule.Cron == "" {
		add("schedule.cron", "is required")
	} else if err := ValidateCron(j.Schedule.Cron); err != nil {
		add("schedule.cron", err.Error())
	}
	if j.Settings.Threads < 0 {
		add("settings.threads", "must not be negative")
	}

	seen := make(map[string]bool, len(j.CustomEnvironmentVariables))
	for _, v := range j.CustomEnvironmentVariables {
		if err := ValidateEnvVarName(v.Name); err != nil {
			add("custom_environment_variables", err.Error())
		}
		if seen[v.Name] {
			add("custom_environment_variables", fmt.Sprintf("%s is declared more than once", v.Name))
		}
		seen[v.Name] = true
	}

	return errors.Join(errs...)
}
