package job

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EnvVar is a desired environment-variable override attached to a job.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// EnvVars is an ordered list of overrides. In YAML each item is a
// single-key map, e.g. "- DBT_TARGET: prod".
type EnvVars []EnvVar

// UnmarshalYAML decodes the single-key map form, stringifying scalar values.
func (e *EnvVars) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: custom_environment_variables must be a list", node.Line)
	}
	vars := make(EnvVars, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return fmt.Errorf("line %d: each environment variable must be a single key/value pair", item.Line)
		}
		key, value := item.Content[0], item.Content[1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: value of %s must be a scalar", value.Line, key.Value)
		}
		v := value.Value
		if value.Tag == "!!null" {
			v = ""
		}
		vars = append(vars, EnvVar{Name: key.Value, Value: v})
	}
	*e = vars
	return nil
}

// MarshalYAML encodes the list back into the single-key map form.
func (e EnvVars) MarshalYAML() (any, error) {
	out := make([]map[string]string, 0, len(e))
	for _, v := range e {
		out = append(out, map[string]string{v.Name: v.Value})
	}
	return out, nil
}

// Names returns the variable names in declaration order.
func (e EnvVars) Names() []string {
	names := make([]string, 0, len(e))
	for _, v := range e {
		names = append(names, v.Name)
	}
	return names
}

// EnvVarOverwrite is an environment variable as observed on the remote
// service for one job. A nil ID means the variable is only defined at the
// project or environment scope and has no job-level override.
type EnvVarOverwrite struct {
	ID              *int   `json:"id"`
	Name            string `json:"name"`
	Value           string `json:"value"`
	JobDefinitionID int    `json:"job_definition_id"`
	ProjectID       int    `json:"project_id"`
	AccountID       int    `json:"account_id"`
}

// Inherited reports whether the variable lacks a job-level override.
func (o EnvVarOverwrite) Inherited() bool {
	return o.ID == nil
}
