package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies step failures for the dashboard.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindFetch      ErrorKind = "fetch"
	KindExtraction ErrorKind = "extraction"
	KindGeneration ErrorKind = "generation"
	KindValidation ErrorKind = "validation"
	KindPublish    ErrorKind = "publish"
	KindConfig     ErrorKind = "config"
	KindStorage    ErrorKind = "storage"
	KindAborted    ErrorKind = "aborted"
)

// StepError ties an error to the step and platform that owned it.
type StepError struct {
	Kind     ErrorKind
	Step     string
	Platform Platform
	Err      error
}

func (e *StepError) Error() string {
	where := e.Step
	if e.Platform != "" {
		where += "/" + string(e.Platform)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, where, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// KindOf extracts the taxonomy kind from an error chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return KindConfig
	}
	return KindNone
}

// ConfigError lists every problem found in a project configuration.
type ConfigError struct {
	ProjectID string
	Problems  []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid project %q: %s", e.ProjectID, strings.Join(e.Problems, "; "))
}

func (e *ConfigError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}
