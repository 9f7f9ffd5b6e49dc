// Package config loads the jobs YAML files that describe the desired state,
// renders templated files and reports configuration defects as UserErrors.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorization.
const (
	ErrCodeConfigNotFound     = "CONFIG_NOT_FOUND"
	ErrCodeConfigParse        = "CONFIG_PARSE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeTemplateInvalid    = "TEMPLATE_INVALID"
	ErrCodeUndefinedVariable  = "UNDEFINED_VARIABLE"
	ErrCodeDuplicateVariable  = "DUPLICATE_VARIABLE"
	ErrCodeUntemplatedFile    = "UNTEMPLATED_FILE"
	ErrCodeInvalidFlags       = "INVALID_FLAGS"
	ErrCodeAccountMismatch    = "ACCOUNT_MISMATCH"
	ErrCodeRemoteInconsistent = "REMOTE_INCONSISTENT"
)

// UserError is a configuration defect with an actionable suggestion.
type UserError struct {
	Code       string // e.g. "CONFIG_NOT_FOUND"
	Message    string
	Context    string // file path, job identifier or flag
	Suggestion string
	Underlying error
}

func (e *UserError) Error() string {
	if e.Context == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Context)
}

func (e *UserError) Unwrap() error {
	return e.Underlying
}

// Is matches on the error code.
func (e *UserError) Is(target error) bool {
	if t, ok := target.(*UserError); ok {
		return e.Code == t.Code
	}
	return false
}

// Format returns the error with its code, location and suggestion.
func (e *UserError) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Context != "" {
		fmt.Fprintf(&b, "\n  Location: %s", e.Context)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}
	return b.String()
}

// NewUserError creates a UserError.
func NewUserError(code, message string) *UserError {
	return &UserError{Code: code, Message: message}
}

// WithContext returns a copy with the location set.
func (e *UserError) WithContext(ctx string) *UserError {
	c := *e
	c.Context = ctx
	return &c
}

// WithSuggestion returns a copy with the suggestion set.
func (e *UserError) WithSuggestion(suggestion string) *UserError {
	c := *e
	c.Suggestion = suggestion
	return &c
}

// WithUnderlying returns a copy wrapping err.
func (e *UserError) WithUnderlying(err error) *UserError {
	c := *e
	c.Underlying = err
	return &c
}

// ErrorList accumulates UserErrors so that every defect is reported at once.
type ErrorList struct {
	errors []*UserError
}

// NewErrorList creates an empty ErrorList.
func NewErrorList() *ErrorList {
	return &ErrorList{}
}

// Add appends err unless it is nil.
func (l *ErrorList) Add(err *UserError) {
	if err != nil {
		l.errors = append(l.errors, err)
	}
}

// HasErrors reports whether the list is non-empty.
func (l *ErrorList) HasErrors() bool {
	return len(l.errors) > 0
}

// Len returns the number of errors.
func (l *ErrorList) Len() int {
	return len(l.errors)
}

// Errors returns a copy of the errors.
func (l *ErrorList) Errors() []*UserError {
	return append([]*UserError(nil), l.errors...)
}

func (l *ErrorList) Error() string {
	switch len(l.errors) {
	case 0:
		return ""
	case 1:
		return l.errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:\n", len(l.errors))
	for i, err := range l.errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// Format returns every error in its detailed form.
func (l *ErrorList) Format() string {
	if len(l.errors) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d error(s):\n", len(l.errors))
	for i, err := range l.errors {
		fmt.Fprintf(&b, "\n--- Error %d ---\n%s\n", i+1, err.Format())
	}
	return b.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	out := make([]error, 0, len(l.errors))
	for _, e := range l.errors {
		out = append(out, e)
	}
	return out
}

// AsError returns the list as an error, or nil if empty.
func (l *ErrorList) AsError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// NewConfigNotFoundError reports a path or pattern that matched no file.
func NewConfigNotFoundError(path string) *UserError {
	return &UserError{
		Code:       ErrCodeConfigNotFound,
		Message:    fmt.Sprintf("no jobs file found for %s", path),
		Context:    path,
		Suggestion: "Check the path. Directories and glob patterns such as 'jobs/*.yml' are accepted.",
	}
}

// NewValidationFailedError reports an invalid job.
func NewValidationFailedError(path, identifier string, err error) *UserError {
	return &UserError{
		Code:       ErrCodeValidationFailed,
		Message:    fmt.Sprintf("job %s is invalid: %v", identifier, err),
		Context:    path,
		Suggestion: "Fix the fields listed above; only 'schedule.cron' is read from the schedule.",
		Underlying: err,
	}
}

// NewUndefinedVariableError reports placeholders that no vars file defines.
func NewUndefinedVariableError(path string, names []string) *UserError {
	return &UserError{
		Code:       ErrCodeUndefinedVariable,
		Message:    fmt.Sprintf("variables without a value: %s", strings.Join(names, ", ")),
		Context:    path,
		Suggestion: "Define them in one of the files passed with --vars-yml.",
	}
}

// NewDuplicateVariableError reports a variable defined in more than one vars file.
func NewDuplicateVariableError(path, name string) *UserError {
	return &UserError{
		Code:       ErrCodeDuplicateVariable,
		Message:    fmt.Sprintf("variable '%s' is defined multiple times in vars files", name),
		Context:    path,
		Suggestion: "Keep each variable in a single vars file.",
	}
}

// NewUntemplatedFileError reports placeholders in a run without vars files.
func NewUntemplatedFileError(path string, names []string) *UserError {
	return &UserError{
		Code:       ErrCodeUntemplatedFile,
		Message:    fmt.Sprintf("%s is a templated YAML file; remove the variables %s or provide their values", path, strings.Join(names, ", ")),
		Context:    path,
		Suggestion: "Pass the variables with --vars-yml.",
	}
}

// IsUserError checks if an error is a UserError with a specific code.
func IsUserError(err error, code string) bool {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}

// GetUserError extracts a UserError from an error chain, if present.
func GetUserError(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return nil
}

// NewYAMLParseError translates YAML decoding errors into user-friendly messages.
func NewYAMLParseError(path string, err error) *UserError {
	errStr := err.Error()
	var message, suggestion string

	switch {
	case strings.Contains(errStr, "custom_environment_variables"),
		strings.Contains(errStr, "single key/value pair"):
		message = "invalid environment variables"
		suggestion = `Environment variables are a list of single-key maps:
  custom_environment_variables:
    - DBT_TARGET: prod`

	case strings.Contains(errStr, "cannot unmarshal !!seq into map"):
		message = "expected an object but found a list"
		suggestion = "'jobs' maps each identifier to a job, e.g. 'jobs: {daily: {...}}'."

	case strings.Contains(errStr, "cannot unmarshal !!str") && strings.Contains(errStr, "int"):
		message = "expected a number but found a string"
		suggestion = "Ids such as project_id and environment_id must be numbers; check that templated values render without quotes."

	case strings.Contains(errStr, "did not find expected key"):
		message = "missing required field or incorrect indentation"
		suggestion = "YAML is sensitive to indentation. Use 2 spaces (not tabs) for each level."

	case strings.Contains(errStr, "found character that cannot start"):
		message = "invalid character in YAML"
		suggestion = "Quote string values that contain special characters like ':', '#', or '{'."

	default:
		message = "invalid YAML syntax"
		suggestion = "Check your YAML syntax. Common issues: incorrect indentation, missing colons, or unquoted special characters."
	}

	location := path
	if _, rest, ok := strings.Cut(errStr, "line "); ok {
		line, _, _ := strings.Cut(rest, ":")
		location = fmt.Sprintf("%s (line %s)", path, line)
	}

	return &UserError{
		Code:       ErrCodeConfigParse,
		Message:    message,
		Context:    location,
		Suggestion: suggestion,
		Underlying: err,
	}
}
