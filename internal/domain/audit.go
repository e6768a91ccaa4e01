package domain

import (
	"time"
)

// AuditAction identifies the kind of event recorded in the audit log.
type AuditAction string

// Audit action kinds. Every accepted submission and every state
// transition appends exactly one entry; failed attempts append a
// failed-attempt record so the trail shows rejected writes too.
const (
	// AuditScoreSubmitted records an accepted vendor score submission.
	AuditScoreSubmitted AuditAction = "score_submitted"

	// AuditScoreSuperseded records a resubmission replacing a mutable score.
	AuditScoreSuperseded AuditAction = "score_superseded"

	// AuditScoreReviewed records a review-status change on a score.
	AuditScoreReviewed AuditAction = "score_reviewed"

	// AuditSubmissionRejected records a failed submission attempt.
	AuditSubmissionRejected AuditAction = "submission_rejected"

	// AuditStateTransition records a matrix lifecycle transition.
	AuditStateTransition AuditAction = "state_transition"

	// AuditResultsSealed records the final results snapshot taken on the
	// Review -> Final transition.
	AuditResultsSealed AuditAction = "results_sealed"
)

// AuditEntry is one append-only record in the matrix audit trail.
// Entries are never deleted or mutated after being appended.
type AuditEntry struct {
	// ID uniquely identifies this entry.
	ID string `json:"id"`

	// Timestamp records when the action occurred.
	Timestamp time.Time `json:"timestamp"`

	// Actor is the id of the caller who performed the action.
	Actor string `json:"actor"`

	// Role is the authorization role the actor held.
	Role Role `json:"role"`

	// Action is the kind of event recorded.
	Action AuditAction `json:"action"`

	// VendorID and EvaluatorID scope score-level entries; both are empty
	// for matrix-level transitions.
	VendorID    string `json:"vendor_id,omitempty"`
	EvaluatorID string `json:"evaluator_id,omitempty"`

	// Before and After capture the changed fields around the action.
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`

	// Overridden is true when the action bypassed the Approved-score
	// immutability guard with an explicit override flag.
	Overridden bool `json:"overridden,omitempty"`

	// Reason carries the operator-supplied reason for cancellations and
	// the rejection cause for failed attempts.
	Reason string `json:"reason,omitempty"`
}
