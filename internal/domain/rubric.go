// Package domain contains pure, dependency-free domain models and types
// for the tender evaluation engine.
package domain

import (
	"fmt"
	"math"
	"time"
)

// Weight arithmetic tolerates tiny floating point drift when checking the
// sum-to-100 invariant. Anything beyond this epsilon is a real violation.
const weightSumEpsilon = 1e-9

// weightSumTarget is the required sum of sibling criterion weights.
const weightSumTarget = 100.0

// RubricStatus represents the lifecycle state of a scoring rubric.
type RubricStatus string

// Rubric lifecycle states. A rubric is editable only while Draft;
// Active rubrics may be bound by evaluation matrices; Archived rubrics
// accept no new bindings but existing matrices keep their bound version.
const (
	// RubricDraft is the initial, editable state.
	RubricDraft RubricStatus = "draft"

	// RubricActive indicates the weight-sum invariant has been verified
	// and the rubric may be bound by evaluation matrices.
	RubricActive RubricStatus = "active"

	// RubricArchived indicates the rubric is retired. No new matrices
	// may bind to it.
	RubricArchived RubricStatus = "archived"
)

// CriterionType identifies how a criterion's raw input is captured at the
// data-entry boundary. The scoring core is agnostic to the type: every
// criterion is consumed as a pre-normalized numeric value on the
// 0..MaxScore scale, and the mapping from booleans, dropdown options, or
// free text to that value is the caller's responsibility.
type CriterionType string

// Supported criterion input types.
const (
	// CriterionNumeric is scored directly on the 0..MaxScore scale.
	CriterionNumeric CriterionType = "numeric"

	// CriterionBoolean is scored as 0 or MaxScore.
	CriterionBoolean CriterionType = "boolean"

	// CriterionDropdown requires a caller-supplied option-to-score mapping.
	CriterionDropdown CriterionType = "dropdown"

	// CriterionText requires a caller-supplied numeric assessment.
	CriterionText CriterionType = "text"
)

// SubCriterion is a weighted, scorable dimension that rolls up into
// exactly one parent Criterion. Sub-criteria are a single nesting level:
// the type deliberately has no children field, so deeper trees cannot be
// expressed.
type SubCriterion struct {
	// ID uniquely identifies this sub-criterion within its parent.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is the human-readable label shown to evaluators.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Weight is this sub-criterion's share of its parent, 0-100.
	// Sibling weights within one parent must sum to exactly 100.
	Weight float64 `json:"weight" yaml:"weight" validate:"min=0,max=100"`

	// MaxScore is the upper bound of the raw score, must be positive.
	MaxScore float64 `json:"max_score" yaml:"max_score" validate:"gt=0"`
}

// Criterion is a named, weighted, scorable dimension of a rubric.
type Criterion struct {
	// ID uniquely identifies this criterion within the rubric.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is the human-readable label shown to evaluators.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Weight is this criterion's share of the total score, 0-100.
	// Top-level weights must sum to exactly 100 before activation.
	Weight float64 `json:"weight" yaml:"weight" validate:"min=0,max=100"`

	// MaxScore is the upper bound of the raw score, must be positive.
	MaxScore float64 `json:"max_score" yaml:"max_score" validate:"gt=0"`

	// Type identifies the data-entry shape of this criterion.
	// The scoring core treats all types uniformly as normalized numerics.
	Type CriterionType `json:"type" yaml:"type" validate:"required,oneof=numeric boolean dropdown text"`

	// Mandatory marks this criterion as compliance-gating. A vendor
	// scoring below PassingScore on a mandatory criterion is technically
	// non-compliant regardless of its weighted total.
	Mandatory bool `json:"mandatory" yaml:"mandatory"`

	// PassingScore is the compliance floor on the normalized 0-100 scale.
	// It is meaningful only when Mandatory is true.
	PassingScore float64 `json:"passing_score" yaml:"passing_score" validate:"min=0,max=100"`

	// SubCriteria optionally decompose this criterion one level deep.
	// When present, their weights must sum to exactly 100 and their
	// scores roll up into this criterion's raw score.
	SubCriteria []SubCriterion `json:"sub_criteria,omitempty" yaml:"sub_criteria,omitempty" validate:"dive"`
}

// Rubric is a versioned, weighted tree of evaluation criteria used to
// score vendors for one tender category. A rubric is immutable once any
// evaluation matrix has bound it; edits to a bound rubric produce a new
// version (copy-on-change).
type Rubric struct {
	// ID uniquely identifies this rubric across all versions.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is the human-readable rubric title.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Version increments on every copy-on-change edit of a bound rubric.
	Version int `json:"version" yaml:"version"`

	// Criteria is the ordered list of top-level scoring dimensions.
	Criteria []Criterion `json:"criteria" yaml:"criteria" validate:"required,min=1,dive"`

	// PassingThreshold is the minimum weighted score, 0-100, a compliant
	// vendor must reach to be recommended for consideration.
	PassingThreshold float64 `json:"passing_threshold" yaml:"passing_threshold" validate:"min=0,max=100"`

	// PrimaryCriterion optionally names the criterion used as the first
	// tie-break when two vendors have identical weighted scores.
	PrimaryCriterion string `json:"primary_criterion,omitempty" yaml:"primary_criterion,omitempty"`

	// Status is the lifecycle state of this rubric.
	Status RubricStatus `json:"status" yaml:"status"`

	// CreatedAt records when this rubric version was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt records the last structural edit.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Criterion returns the top-level criterion with the given id, or false
// when the rubric does not define it.
func (r *Rubric) Criterion(id string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// TotalWeight returns the sum of all top-level criterion weights.
func (r *Rubric) TotalWeight() float64 {
	var sum float64
	for _, c := range r.Criteria {
		sum += c.Weight
	}
	return sum
}

// ValidateWeights checks the weight-sum invariant required for activation:
// top-level criterion weights must sum to exactly 100, and within every
// criterion that declares sub-criteria, the sub-criterion weights must
// also sum to exactly 100. Violations are collected into a single
// ValidationError rather than silently normalized.
func (r *Rubric) ValidateWeights() error {
	verr := NewValidationError("rubric")

	for _, c := range r.Criteria {
		if c.Weight < 0 {
			verr.AddError(fmt.Sprintf("criterion %s has negative weight %.2f", c.ID, c.Weight))
		}
		if c.Mandatory && c.PassingScore <= 0 {
			verr.AddError(fmt.Sprintf("criterion %s is mandatory but has no passing score", c.ID))
		}
		if len(c.SubCriteria) > 0 {
			var subSum float64
			for _, sc := range c.SubCriteria {
				if sc.Weight < 0 {
					verr.AddError(fmt.Sprintf("sub-criterion %s of %s has negative weight %.2f", sc.ID, c.ID, sc.Weight))
				}
				subSum += sc.Weight
			}
			if math.Abs(subSum-weightSumTarget) > weightSumEpsilon {
				verr.AddError(fmt.Sprintf("sub-criterion weights of %s sum to %.2f, want %.0f", c.ID, subSum, weightSumTarget))
			}
		}
	}

	if sum := r.TotalWeight(); math.Abs(sum-weightSumTarget) > weightSumEpsilon {
		verr.AddError(fmt.Sprintf("criterion weights sum to %.2f, want %.0f", sum, weightSumTarget))
	}

	if r.PrimaryCriterion != "" {
		if _, ok := r.Criterion(r.PrimaryCriterion); !ok {
			verr.AddError(fmt.Sprintf("primary criterion %s is not defined", r.PrimaryCriterion))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Clone returns a deep value-copy of the rubric. Bound snapshots are built
// from clones so that later edits to the stored rubric can never reach a
// matrix mid-evaluation.
func (r *Rubric) Clone() Rubric {
	return deepCopyValue(*r).(Rubric)
}

// RubricSnapshot is the immutable value-copy of a rubric handed to an
// evaluation matrix at bind time. The snapshot records which rubric
// version it was taken from; the underlying rubric may continue to evolve
// through copy-on-change edits without affecting bound matrices.
type RubricSnapshot struct {
	// Rubric is the frozen rubric value.
	Rubric Rubric `json:"rubric"`

	// BoundAt records when the snapshot was taken.
	BoundAt time.Time `json:"bound_at"`
}
