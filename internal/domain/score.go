package domain

import (
	"time"
)

// ReviewStatus represents the committee review state of a VendorScore.
type ReviewStatus string

// Review states for a submitted vendor score. Once Approved, the record
// is immutable; any further change requires an explicit override action
// that is separately audited.
const (
	// ReviewPending is the initial state of every submission.
	ReviewPending ReviewStatus = "pending"

	// ReviewReviewed indicates the chair has seen the submission.
	ReviewReviewed ReviewStatus = "reviewed"

	// ReviewApproved freezes the record against non-override writes.
	ReviewApproved ReviewStatus = "approved"

	// ReviewRejected marks the submission as rejected by the chair.
	ReviewRejected ReviewStatus = "rejected"
)

// IssueSeverity classifies a compliance issue.
type IssueSeverity string

// Compliance issue severities. Only Critical issues gate technical
// compliance; Minor issues are informational.
const (
	// SeverityCritical is raised when a mandatory criterion scores below
	// its passing threshold. Any Critical issue makes the vendor
	// technically non-compliant.
	SeverityCritical IssueSeverity = "critical"

	// SeverityMinor is raised when an optional criterion scores below the
	// informational quality floor. It never blocks compliance.
	SeverityMinor IssueSeverity = "minor"
)

// ComplianceIssue describes a single criterion-level compliance finding.
// Non-compliance is a first-class evaluation outcome, not an error: a
// vendor with Critical issues still ranks, it just can never be awarded.
type ComplianceIssue struct {
	// CriterionID names the criterion that raised the issue.
	CriterionID string `json:"criterion_id"`

	// Severity is Critical for mandatory-threshold violations and Minor
	// for informational findings.
	Severity IssueSeverity `json:"severity"`

	// NormalizedScore is the vendor's score on the 0-100 scale.
	NormalizedScore float64 `json:"normalized_score"`

	// Threshold is the floor the score was compared against.
	Threshold float64 `json:"threshold"`

	// Detail is a human-readable description for evaluator feedback.
	Detail string `json:"detail"`
}

// VendorScore is one evaluator's scored submission for one vendor within
// an evaluation matrix. The matrix owns all VendorScore records; a score
// has no lifecycle outside its owning matrix. Resubmission supersedes the
// previous record rather than duplicating it.
type VendorScore struct {
	// VendorID identifies the scored vendor.
	VendorID string `json:"vendor_id"`

	// EvaluatorID identifies the committee member who scored.
	EvaluatorID string `json:"evaluator_id"`

	// RawScores maps criterion id to the raw score on that criterion's
	// 0..MaxScore scale. Sub-criterion ids may appear alongside their
	// parent; when present they are rolled up into the parent score.
	RawScores map[string]float64 `json:"raw_scores"`

	// Comments carries the evaluator's free-text remarks.
	Comments string `json:"comments,omitempty"`

	// ReviewStatus is the committee review state of this record.
	ReviewStatus ReviewStatus `json:"review_status"`

	// Version is the optimistic concurrency token. A resubmission must
	// present the version it read; a stale version is rejected with a
	// ConflictError rather than silently applying last-writer-wins.
	Version int64 `json:"version"`

	// SubmittedAt records when this version of the score was accepted.
	// It is the second tie-break key in the ranking order.
	SubmittedAt time.Time `json:"submitted_at"`

	// Derived fields below are computed by the engine on acceptance and
	// are never taken from caller input.

	// WeightedScore is the 0-100 composite computed from RawScores and
	// the bound rubric weights.
	WeightedScore float64 `json:"weighted_score"`

	// TechnicalCompliance is true iff no Critical compliance issue exists.
	TechnicalCompliance bool `json:"technical_compliance"`

	// ComplianceIssues lists all findings, Critical and Minor.
	ComplianceIssues []ComplianceIssue `json:"compliance_issues,omitempty"`
}

// Key returns the (vendor, evaluator) identity of this score. Submissions
// for different keys are independent; submissions for the same key are
// serialized and version-checked.
func (vs *VendorScore) Key() ScoreKey {
	return ScoreKey{VendorID: vs.VendorID, EvaluatorID: vs.EvaluatorID}
}

// Clone returns a deep value-copy of the score.
func (vs *VendorScore) Clone() VendorScore {
	return deepCopyValue(*vs).(VendorScore)
}

// ScoreKey identifies a VendorScore within its matrix.
type ScoreKey struct {
	VendorID    string
	EvaluatorID string
}
