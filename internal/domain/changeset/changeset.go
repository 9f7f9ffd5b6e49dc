package changeset

import (
	"sync"

	"github.com/google/uuid"
)

// WarningCode classifies a non-fatal inconsistency found while planning.
type WarningCode string

// Warning codes.
const (
	WarnDuplicateIdentifier WarningCode = "duplicate_identifier"
	WarnJobFiltered         WarningCode = "job_filtered"
	WarnNoJobs              WarningCode = "no_jobs"
	WarnMultipleAccounts    WarningCode = "multiple_accounts"
)

// Warning is a remote or configuration inconsistency that does not stop
// reconciliation.
type Warning struct {
	Code       WarningCode `json:"code"`
	Identifier string      `json:"identifier,omitempty"`
	Message    string      `json:"message"`
	URLs       []string    `json:"urls,omitempty"`
}

// ChangeSet is the ordered list of changes for one run. Job changes for an
// identifier always precede the env var changes that reference it.
type ChangeSet struct {
	RunID    string
	Changes  []*Change
	Warnings []Warning

	mu      sync.Mutex
	success bool
}

// New returns an empty change set with a fresh run id.
func New() *ChangeSet {
	return &ChangeSet{
		RunID:   uuid.NewString(),
		success: true,
	}
}

// Add appends changes in order.
func (cs *ChangeSet) Add(changes ...*Change) {
	cs.Changes = append(cs.Changes, changes...)
}

// Warn records a warning.
func (cs *ChangeSet) Warn(w Warning) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.Warnings = append(cs.Warnings, w)
}

// Len returns the number of changes.
func (cs *ChangeSet) Len() int {
	return len(cs.Changes)
}

// Empty reports whether there is nothing to apply.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}

// ApplySuccess reports whether every applied change has succeeded so far.
func (cs *ChangeSet) ApplySuccess() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.success
}

// MarkFailed flips ApplySuccess to false. It never flips back.
func (cs *ChangeSet) MarkFailed() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.success = false
}

// ByKind returns the changes of one kind, in order.
func (cs *ChangeSet) ByKind(k Kind) []*Change {
	var out []*Change
	for _, c := range cs.Changes {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// Groups partitions the changes by job identifier, keeping the relative
// order of changes inside each group and ordering groups by first
// appearance.
func (cs *ChangeSet) Groups() [][]*Change {
	index := make(map[string]int)
	var groups [][]*Change
	for _, c := range cs.Changes {
		i, ok := index[c.JobIdentifier]
		if !ok {
			i = len(groups)
			index[c.JobIdentifier] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c)
	}
	return groups
}

// Failures returns the changes whose apply failed.
func (cs *ChangeSet) Failures() []*Change {
	var out []*Change
	for _, c := range cs.Changes {
		if c.Failed() {
			out = append(out, c)
		}
	}
	return out
}
