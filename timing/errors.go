package timing

import (
	"errors"
	"fmt"
)

// Errors surfaced by the alignment engine. None of them is fatal to a
// playback session; each has a degraded recovery path.
var (
	// Input errors
	ErrMalformedTimingData = errors.New("malformed timing data")
	ErrUnknownFormat       = errors.New("unrecognized timing payload")
	ErrEmptyText           = errors.New("empty text provided")

	// Alignment errors
	ErrAlignmentMiss = errors.New("word not found in text")

	// Cache errors
	ErrCacheMiss     = errors.New("document not in cache")
	ErrEmptyDocument = errors.New("document has no timing data")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// General errors
	ErrCanceled = errors.New("operation was canceled")
	ErrClosed   = errors.New("resource has been closed")
)

// IsRecoverableError reports whether a degraded result can still be
// produced after err.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrClosed),
		errors.Is(err, ErrCanceled):
		return false
	}

	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for expected control flow, such as a cache miss.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for degraded but usable output.
	SeverityWarning
	// SeverityError is for failures of a single operation.
	SeverityError
	// SeverityCritical is for failures that need operator attention.
	SeverityCritical
)

// String returns the lowercase severity name.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// AlignmentError carries the component and action that produced err.
type AlignmentError struct {
	Err       error
	Component string
	Action    string
	Severity  ErrorSeverity
	Context   map[string]any
}

// Error implements the error interface.
func (e *AlignmentError) Error() string {
	if e.Err == nil {
		return "unknown alignment error"
	}
	if e.Component == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *AlignmentError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *AlignmentError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// NewAlignmentError creates an error for component while performing action.
func NewAlignmentError(err error, component, action string) *AlignmentError {
	return &AlignmentError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Context:   make(map[string]any),
	}
}

// WithSeverity sets the error severity.
func (e *AlignmentError) WithSeverity(severity ErrorSeverity) *AlignmentError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *AlignmentError) WithContext(key string, value any) *AlignmentError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
