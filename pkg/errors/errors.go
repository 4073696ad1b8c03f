// Package errors holds the error taxonomy shared by the filter pipeline.
// Malformed records and suspicious readings are verdicts, not errors, so they
// do not appear here.
package errors

import (
	"errors"
	"fmt"
)

// Re-exported so callers need a single errors import.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

var (
	// ErrMissingInput indicates a configured source or comparison file is absent.
	ErrMissingInput = errors.New("missing input")

	// ErrOracleUnavailable indicates the reading generator could not be initialized.
	ErrOracleUnavailable = errors.New("reading oracle unavailable")

	// ErrInvalidConfig indicates a configuration value failed validation.
	ErrInvalidConfig = errors.New("invalid config")
)

// MissingInputError names the file that was expected but not found.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("input file %s not found", e.Path)
}

// Is implements errors.Is support
func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

// NewMissingInputError creates a MissingInputError for path.
func NewMissingInputError(path string) *MissingInputError {
	return &MissingInputError{Path: path}
}

// OracleUnavailableError wraps the tokenizer initialization failure.
type OracleUnavailableError struct {
	Oracle string
	Err    error
}

func (e *OracleUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reading oracle %s unavailable: %v", e.Oracle, e.Err)
	}
	return fmt.Sprintf("reading oracle %s unavailable", e.Oracle)
}

// Unwrap implements errors.Unwrap
func (e *OracleUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *OracleUnavailableError) Is(target error) bool {
	return target == ErrOracleUnavailable
}

// ConfigError reports a single invalid configuration field.
type ConfigError struct {
	Field   string
	Value   any
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid config %s=%v: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid config: %s", e.Message)
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a ConfigError.
func NewConfigError(field string, value any, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}
