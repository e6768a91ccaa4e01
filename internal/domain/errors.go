package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during evaluation operations.
var (
	// ErrRubricNotFound indicates that a requested rubric does not exist.
	ErrRubricNotFound = errors.New("rubric not found")

	// ErrRubricNotActive indicates a bind attempt against a rubric that
	// is not in the Active state.
	ErrRubricNotActive = errors.New("rubric not active")

	// ErrRubricBound indicates a structural edit attempt on a rubric
	// frozen by an existing matrix binding.
	ErrRubricBound = errors.New("rubric bound by an evaluation matrix")

	// ErrScoreApproved indicates a non-override write against an
	// Approved, immutable vendor score.
	ErrScoreApproved = errors.New("vendor score approved and immutable")

	// ErrUnknownVendor indicates a submission for a vendor outside the
	// matrix's eligible vendor list.
	ErrUnknownVendor = errors.New("vendor not eligible for this matrix")

	// ErrUnknownEvaluator indicates a submission by an evaluator outside
	// the committee roster.
	ErrUnknownEvaluator = errors.New("evaluator not on committee roster")

	// ErrRoleForbidden indicates the caller's role does not permit the
	// attempted action.
	ErrRoleForbidden = errors.New("role not permitted for this action")

	// ErrReasonRequired indicates a cancellation without a reason string.
	ErrReasonRequired = errors.New("cancellation reason required")
)

// ValidationError represents a failed validation of caller input such as
// a malformed rubric, a weight-sum violation, or a missing mandatory
// score. It can carry multiple validation failures and is terminal for
// the call: the caller must correct the input, not retry.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// Addf adds a formatted error message to the validation error.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// StateError represents an action attempted in a matrix lifecycle state
// that forbids it, such as a submission against a Final matrix. It is
// terminal for the call.
type StateError struct {
	// MatrixID identifies the matrix that rejected the action.
	MatrixID string

	// Status is the state the matrix was in.
	Status MatrixStatus

	// Action describes what was attempted.
	Action string
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	return fmt.Sprintf("state error: matrix=%s, status=%s, action=%s", e.MatrixID, e.Status, e.Action)
}

// NewStateError creates a new StateError with the given details.
func NewStateError(matrixID string, status MatrixStatus, action string) *StateError {
	return &StateError{
		MatrixID: matrixID,
		Status:   status,
		Action:   action,
	}
}

// ConflictError represents an optimistic concurrency violation: a writer
// presented a stale VendorScore version. It is recoverable; the caller
// should re-read the current record and retry with the fresh version.
type ConflictError struct {
	// Key identifies the contested vendor score.
	Key ScoreKey

	// Expected is the version the writer presented.
	Expected int64

	// Current is the version actually stored.
	Current int64
}

// Error implements the error interface for ConflictError.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict: vendor=%s, evaluator=%s, expected version %d, current %d",
		e.Key.VendorID, e.Key.EvaluatorID, e.Expected, e.Current)
}

// NewConflictError creates a new ConflictError with the given details.
func NewConflictError(key ScoreKey, expected, current int64) *ConflictError {
	return &ConflictError{Key: key, Expected: expected, Current: current}
}

// IsRetryable reports whether the caller can recover by re-reading state
// and retrying. Only concurrency conflicts qualify; validation and state
// errors require a different request, not a retry.
func IsRetryable(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
