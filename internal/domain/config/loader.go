package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// Config is the decoded content of one or more jobs files.
type Config struct {
	AccountID int                 `yaml:"account_id,omitempty"`
	Jobs      map[string]*job.Job `yaml:"jobs"`
}

// Result is the desired state loaded from disk.
type Result struct {
	Jobs map[string]*job.Job
	// Sources maps each identifier to the file that defined it last.
	Sources  map[string]string
	Files    []string
	Warnings []string
}

// Identifiers returns the job identifiers in sorted order.
func (r *Result) Identifiers() []string {
	ids := make([]string, 0, len(r.Jobs))
	for id := range r.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AccountIDs returns the distinct account ids of the loaded jobs.
func (r *Result) AccountIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, id := range r.Identifiers() {
		a := r.Jobs[id].AccountID
		if !seen[a] {
			seen[a] = true
			ids = append(ids, a)
		}
	}
	sort.Ints(ids)
	return ids
}

// Loader reads jobs files.
type Loader struct {
	logger ports.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for load warnings.
func WithLogger(l ports.Logger) LoaderOption {
	return func(ld *Loader) {
		ld.logger = l
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{logger: ports.NewNopLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every file matched by patterns. When varsPatterns is non-empty
// the files are rendered with the merged vars first; otherwise a file that
// contains placeholders is rejected. Jobs from all files are merged (a later
// file wins on identifier clashes) and other top-level keys are last-wins.
func (l *Loader) Load(ctx context.Context, patterns, varsPatterns []string) (*Result, error) {
	files, err := ResolvePaths(patterns)
	if err != nil {
		return nil, err
	}

	var vars map[string]any
	templated := len(varsPatterns) > 0
	if templated {
		varsFiles, err := ResolvePaths(varsPatterns, ".yml", ".yaml", ".toml")
		if err != nil {
			return nil, err
		}
		if vars, err = LoadVars(varsFiles); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Jobs:    make(map[string]*job.Job),
		Sources: make(map[string]string),
		Files:   files,
	}
	rawJobs := make(map[string]any)
	top := make(map[string]any)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		content := string(data)

		if templated {
			if content, err = Render(path, content, vars); err != nil {
				return nil, err
			}
		} else if names := Placeholders(content); len(names) > 0 {
			return nil, NewUntemplatedFileError(path, names)
		}

		var doc map[string]any
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return nil, NewYAMLParseError(path, err)
		}

		for key, value := range doc {
			if key != "jobs" {
				top[key] = value
				continue
			}
			if value == nil {
				continue
			}
			jobs, ok := value.(map[string]any)
			if !ok {
				return nil, NewUserError(ErrCodeConfigParse, "'jobs' must map identifiers to jobs").WithContext(path)
			}
			for id, raw := range jobs {
				if prev, dup := res.Sources[id]; dup && prev != path {
					res.warn(ctx, l.logger, fmt.Sprintf("job %s is defined in %s and %s; the definition in %s is used", id, prev, path, path))
				}
				rawJobs[id] = raw
				res.Sources[id] = path
			}
		}
	}

	l.warnDerivedSchedule(ctx, res, rawJobs)

	defaultAccount := 0
	if v, ok := top["account_id"].(int); ok {
		defaultAccount = v
	}

	ids := make([]string, 0, len(rawJobs))
	for id := range rawJobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	errs := NewErrorList()
	for _, id := range ids {
		path := res.Sources[id]
		j, err := decodeJob(rawJobs[id])
		if err != nil {
			errs.Add(NewYAMLParseError(path, fmt.Errorf("job %s: %w", id, err)))
			continue
		}
		j.Identifier = id
		if j.AccountID == 0 {
			j.AccountID = defaultAccount
		}
		j.Derive()
		if err := j.Validate(); err != nil {
			errs.Add(NewValidationFailedError(path, id, err))
			continue
		}
		res.Jobs[id] = j
	}
	if err := errs.AsError(); err != nil {
		return nil, err
	}

	return res, nil
}

func (r *Result) warn(ctx context.Context, logger ports.Logger, msg string) {
	r.Warnings = append(r.Warnings, msg)
	logger.Warn(ctx, msg)
}

// warnDerivedSchedule flags schedule.date and schedule.time entries, which
// are generated from the cron expression and ignored on load.
func (l *Loader) warnDerivedSchedule(ctx context.Context, res *Result, rawJobs map[string]any) {
	for _, field := range []string{"date", "time"} {
		var ids []string
		for id, raw := range rawJobs {
			m, _ := raw.(map[string]any)
			schedule, _ := m["schedule"].(map[string]any)
			if schedule[field] != nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		res.warn(ctx, l.logger, fmt.Sprintf(
			"there is some %s config under 'schedule > %s' in your YML (jobs %s); this data is auto generated and should be deleted, only cron is supported",
			field, field, strings.Join(ids, ", ")))
	}
}

func decodeJob(raw any) (*job.Job, error) {
	if raw == nil {
		return nil, fmt.Errorf("job is empty")
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	j := job.New()
	if err := yaml.Unmarshal(data, j); err != nil {
		return nil, err
	}
	return j, nil
}

// ResolvePaths expands files, directories and glob patterns into a sorted
// list of distinct files. Directories contribute the files with one of exts
// (default .yml and .yaml). A pattern that matches nothing is an error.
func ResolvePaths(patterns []string, exts ...string) ([]string, error) {
	if len(exts) == 0 {
		exts = []string{".yml", ".yaml"}
	}
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, pattern := range patterns {
		var matches []string
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			for _, ext := range exts {
				m, _ := filepath.Glob(filepath.Join(pattern, "*"+ext))
				matches = append(matches, m...)
			}
		} else if err == nil {
			matches = []string{pattern}
		} else {
			m, globErr := filepath.Glob(pattern)
			if globErr != nil {
				return nil, NewUserError(ErrCodeConfigNotFound, "invalid file pattern").
					WithContext(pattern).
					WithUnderlying(globErr)
			}
			matches = m
		}
		if len(matches) == 0 {
			return nil, NewConfigNotFoundError(pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return files, nil
}
