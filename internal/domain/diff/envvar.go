package diff

import (
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
)

// EnvVarDiff is the value change of one environment variable. OldValue is
// nil when the variable does not exist remotely.
type EnvVarDiff struct {
	OldValue *string `json:"old_value"`
	NewValue string  `json:"new_value"`
}

// CompareEnvVar checks a desired variable against the remote variables of
// its job. The returned id is the job-level override id, nil when the
// variable is absent or only inherited from a higher scope.
func CompareEnvVar(desired job.EnvVar, remote map[string]job.EnvVarOverwrite) (bool, *int, EnvVarDiff) {
	current, ok := remote[desired.Name]
	if !ok {
		return false, nil, EnvVarDiff{NewValue: desired.Value}
	}
	if current.Value == desired.Value {
		return true, current.ID, EnvVarDiff{}
	}
	old := current.Value
	return false, current.ID, EnvVarDiff{OldValue: &old, NewValue: desired.Value}
}
