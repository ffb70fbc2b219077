package errors

import "fmt"

// Error type constants
const (
	ValidationError     = "VALIDATION_ERROR"
	NotFound            = "NOT_FOUND"
	StepNotFound        = "STEP_NOT_FOUND"
	ProcessFailed       = "PROCESS_FAILED"
	ProxyLifecycle      = "PROXY_LIFECYCLE"
	UnsupportedPlatform = "UNSUPPORTED_PLATFORM"
)

// Sentinels for errors.Is checks. Only the Type field is compared.
var (
	ErrValidation          = &RunError{Type: ValidationError}
	ErrNotFound            = &RunError{Type: NotFound}
	ErrStepNotFound        = &RunError{Type: StepNotFound}
	ErrProcessFailed       = &RunError{Type: ProcessFailed}
	ErrProxyLifecycle      = &RunError{Type: ProxyLifecycle}
	ErrUnsupportedPlatform = &RunError{Type: UnsupportedPlatform}
)

// RunError is a structured error carrying the query and location that failed.
type RunError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Job     string `json:"job,omitempty"`
	Path    string `json:"path,omitempty"`
	Hint    string `json:"hint,omitempty"`
	// Output holds the raw process transcript for PROCESS_FAILED errors.
	Output string `json:"output,omitempty"`
	Cause  error  `json:"-"`
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Job != "" {
		msg += fmt.Sprintf(" in job %s", e.Job)
	}
	if e.Path != "" {
		msg += fmt.Sprintf("\nin %s", e.Path)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RunError of the same type.
func (e *RunError) Is(target error) bool {
	t, ok := target.(*RunError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func NewValidationError(msg, hint string) *RunError {
	return &RunError{Type: ValidationError, Message: msg, Hint: hint}
}

func NewNotFoundError(msg string) *RunError {
	return &RunError{Type: NotFound, Message: msg}
}

// NewStepNotFoundError reports a step query that matched nothing. query is the
// JSON rendering of the step identifier without its replacement payload.
func NewStepNotFoundError(query, job, path string) *RunError {
	return &RunError{
		Type:    StepNotFound,
		Message: fmt.Sprintf("could not find step %s", query),
		Job:     job,
		Path:    path,
	}
}

func NewProcessError(msg, output string) *RunError {
	return &RunError{Type: ProcessFailed, Message: msg, Output: output}
}

func NewProxyError(msg string) *RunError {
	return &RunError{Type: ProxyLifecycle, Message: msg}
}
