package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the build-repair engine
type ErrorType string

const (
	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"
	ErrorTypeFileIO       ErrorType = "file_io"

	// Manifest errors
	ErrorTypeManifest ErrorType = "manifest"

	// Build errors
	ErrorTypeBuild ErrorType = "build"

	// Rule errors
	ErrorTypeRule ErrorType = "rule"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// Sentinel errors shared across packages
var (
	ErrSectionMissing = errors.New("manifest section not found")
	ErrNotFound       = errors.New("manifest entry not found")
	ErrAlreadyGrouped = errors.New("entry already belongs to a group")
	ErrIntegrity      = errors.New("edit would break manifest integrity")
	ErrNoSourceRoot   = errors.New("source root not found")
	ErrNoManifest     = errors.New("project manifest not found")
)

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		errorType = ErrorTypeFileNotFound
	case errors.Is(err, fs.ErrPermission):
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ManifestError represents a failed manifest edit. The manifest is left untouched.
type ManifestError struct {
	Section    string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewManifestError creates a new manifest error
func NewManifestError(op, section string, err error) *ManifestError {
	return &ManifestError{
		Section:    section,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ManifestError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("manifest %s failed in %s section: %v", e.Operation, e.Section, e.Underlying)
	}
	return fmt.Sprintf("manifest %s failed: %v", e.Operation, e.Underlying)
}

func (e *ManifestError) Unwrap() error {
	return e.Underlying
}

// BuildError represents a failure to run the external build tool
type BuildError struct {
	Command    string
	TimedOut   bool
	Underlying error
	Timestamp  time.Time
}

// NewBuildError creates a new build error
func NewBuildError(command string, timedOut bool, err error) *BuildError {
	return &BuildError{
		Command:    command,
		TimedOut:   timedOut,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("build command %s timed out: %v", e.Command, e.Underlying)
	}
	return fmt.Sprintf("build command %s failed: %v", e.Command, e.Underlying)
}

// Unwrap returns the underlying error
func (e *BuildError) Unwrap() error {
	return e.Underlying
}

// RuleError represents a rule that failed to load or apply
type RuleError struct {
	Rule       string
	Underlying error
}

// NewRuleError creates a new rule error
func NewRuleError(rule string, err error) *RuleError {
	return &RuleError{Rule: rule, Underlying: err}
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Underlying)
}

func (e *RuleError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
