package config

import (
	"slices"
	"sort"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
)

// Scope is a set of project and environment ids.
type Scope struct {
	ProjectIDs     []int
	EnvironmentIDs []int
}

// Empty reports whether the scope restricts nothing.
func (s Scope) Empty() bool {
	return len(s.ProjectIDs) == 0 && len(s.EnvironmentIDs) == 0
}

// Contains reports whether j falls inside the scope.
func (s Scope) Contains(j *job.Job) bool {
	if len(s.ProjectIDs) > 0 && !slices.Contains(s.ProjectIDs, j.ProjectID) {
		return false
	}
	if len(s.EnvironmentIDs) > 0 && !slices.Contains(s.EnvironmentIDs, j.EnvironmentID) {
		return false
	}
	return true
}

// ScopeOf returns the distinct, sorted projects and environments of jobs.
func ScopeOf(jobs map[string]*job.Job) Scope {
	projects := make(map[int]bool)
	envs := make(map[int]bool)
	for _, j := range jobs {
		projects[j.ProjectID] = true
		envs[j.EnvironmentID] = true
	}
	return Scope{ProjectIDs: sortedKeys(projects), EnvironmentIDs: sortedKeys(envs)}
}

// FilterJobs keeps the jobs inside scope and returns the identifiers of the
// removed ones, sorted.
func FilterJobs(jobs map[string]*job.Job, scope Scope) (map[string]*job.Job, []string) {
	if scope.Empty() {
		return jobs, nil
	}
	kept := make(map[string]*job.Job, len(jobs))
	var removed []string
	for id, j := range jobs {
		if scope.Contains(j) {
			kept[id] = j
		} else {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return kept, removed
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
