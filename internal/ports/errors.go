package ports

import (
	"errors"
	"fmt"
)

// ErrConfigNotFound indicates that required configuration is missing.
var ErrConfigNotFound = errors.New("configuration not found")

// StoreError represents an error from a rubric store adapter.
// It includes the rubric id and operation that failed.
type StoreError struct {
	// RubricID is the rubric involved in the failed operation.
	RubricID string

	// Operation is the name of the store operation that failed.
	Operation string

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("rubric store error: operation=%s, rubric=%s, err=%v", e.Operation, e.RubricID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a new StoreError with the given details.
func NewStoreError(rubricID, operation string, err error) *StoreError {
	return &StoreError{
		RubricID:  rubricID,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
