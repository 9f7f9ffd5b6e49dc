package changeset

// Report is the serializable view of a change set.
type Report struct {
	RunID                  string        `json:"run_id"`
	ApplySuccess           bool          `json:"apply_success"`
	JobChanges             []ReportEntry `json:"job_changes"`
	EnvVarOverwriteChanges []ReportEntry `json:"env_var_overwrite_changes"`
	Warnings               []Warning     `json:"warnings,omitempty"`
}

// ReportEntry is one change in a Report.
type ReportEntry struct {
	Action        string `json:"action"`
	Type          string `json:"type"`
	Identifier    string `json:"identifier"`
	ProjectID     int    `json:"project_id"`
	EnvironmentID int    `json:"environment_id"`
	Differences   any    `json:"differences,omitempty"`
	ResultID      *int   `json:"result_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Empty reports whether the report lists no changes.
func (r Report) Empty() bool {
	return len(r.JobChanges) == 0 && len(r.EnvVarOverwriteChanges) == 0
}

// Applied reports whether any entry carries an apply outcome.
func (r Report) Applied() bool {
	for _, entries := range [][]ReportEntry{r.JobChanges, r.EnvVarOverwriteChanges} {
		for _, e := range entries {
			if e.ResultID != nil || e.Error != "" {
				return true
			}
		}
	}
	return false
}

// Report builds the serializable view.
func (cs *ChangeSet) Report() Report {
	r := Report{
		RunID:                  cs.RunID,
		ApplySuccess:           cs.ApplySuccess(),
		JobChanges:             []ReportEntry{},
		EnvVarOverwriteChanges: []ReportEntry{},
		Warnings:               cs.Warnings,
	}
	for _, c := range cs.Changes {
		e := entry(c)
		if c.Kind == KindJob {
			r.JobChanges = append(r.JobChanges, e)
		} else {
			r.EnvVarOverwriteChanges = append(r.EnvVarOverwriteChanges, e)
		}
	}
	return r
}

func entry(c *Change) ReportEntry {
	e := ReportEntry{
		Action:        c.Action.String(),
		Type:          c.Kind.Label(),
		Identifier:    c.Identifier,
		ProjectID:     c.ProjectID,
		EnvironmentID: c.EnvironmentID,
		ResultID:      c.ResultID,
	}
	switch {
	case c.EnvVarDiff != nil:
		e.Differences = c.EnvVarDiff
	case len(c.Differences) > 0:
		e.Differences = c.Differences
	}
	if c.Err != nil {
		e.Error = c.Err.Error()
	}
	return e
}
