// Package changeset models the ordered set of typed changes that brings the
// remote jobs in line with the desired configuration, and builds it.
package changeset

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/diff"
)

// Kind is the type of resource a change touches.
type Kind int

const (
	// KindJob is a job definition.
	KindJob Kind = iota
	// KindEnvVarOverwrite is a job-level environment variable override.
	KindEnvVarOverwrite
)

func (k Kind) String() string {
	switch k {
	case KindJob:
		return "job"
	case KindEnvVarOverwrite:
		return "env var overwrite"
	default:
		return "unknown"
	}
}

// Label returns the display form, e.g. "Env Var Overwrite".
func (k Kind) Label() string {
	return cases.Title(language.English).String(k.String())
}

// Action is the operation applied to a resource.
type Action int

// Actions.
const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Change is one planned operation and, after apply, its outcome.
type Change struct {
	Kind   Kind
	Action Action
	// Identifier is the job identifier, or "job:VAR" for env var changes.
	Identifier string
	// JobIdentifier is the identifier of the job the change belongs to.
	JobIdentifier string
	ProjectID     int
	EnvironmentID int
	Operation     Operation
	Differences   diff.StructuredDiff
	EnvVarDiff    *diff.EnvVarDiff

	ResultID *int
	Err      error
	Applied  bool
}

// EnvVarIdentifier joins a job identifier and a variable name.
func EnvVarIdentifier(jobIdentifier, name string) string {
	return jobIdentifier + ":" + name
}

// Succeed records a successful apply.
func (c *Change) Succeed(resultID *int) {
	c.Applied = true
	c.ResultID = resultID
	c.Err = nil
}

// Fail records a failed apply.
func (c *Change) Fail(err error) {
	c.Applied = false
	c.Err = err
}

// Failed reports whether applying the change failed.
func (c *Change) Failed() bool {
	return c.Err != nil
}

// Summary renders the differences on one line each.
func (c *Change) Summary() string {
	if c.EnvVarDiff != nil {
		old := "<unset>"
		if c.EnvVarDiff.OldValue != nil {
			old = *c.EnvVarDiff.OldValue
		}
		return fmt.Sprintf("value: %s -> %s", old, c.EnvVarDiff.NewValue)
	}
	lines := make([]string, 0, len(c.Differences))
	for _, d := range c.Differences {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}

func (c *Change) String() string {
	return fmt.Sprintf("%s %s %s", c.Action, c.Kind.Label(), c.Identifier)
}
