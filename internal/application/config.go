// Package application orchestrates evaluation exercises: it owns the
// EvaluationMatrix state machine, the vendor score collection, the
// synchronous results recomputation, and the audit trail.
package application

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openprocure/evalmatrix/internal/domain"
	"github.com/openprocure/evalmatrix/internal/engine"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// MatrixConfig defines one evaluation exercise: one tender, one bound
// rubric, one committee. The tender/bid intake system supplies the
// tender id, eligible vendors, and committee roster at setup time.
type MatrixConfig struct {
	// ID uniquely identifies the matrix. When empty an id is generated.
	ID string `yaml:"id" json:"id"`

	// TenderID references the tender being evaluated.
	TenderID string `yaml:"tender_id" json:"tender_id" validate:"required"`

	// Committee is the roster of evaluator ids. Only roster members may
	// submit scores.
	Committee []string `yaml:"committee" json:"committee" validate:"required,min=1,dive,required"`

	// Vendors is the list of eligible vendor ids supplied by bid intake.
	Vendors []string `yaml:"vendors" json:"vendors" validate:"required,min=1,dive,required"`

	// PeriodStart and PeriodEnd bound the evaluation period.
	PeriodStart time.Time `yaml:"period_start" json:"period_start"`
	PeriodEnd   time.Time `yaml:"period_end" json:"period_end"`

	// Consensus configures the inter-evaluator agreement threshold.
	Consensus engine.ConsensusConfig `yaml:"consensus" json:"consensus"`

	// Compliance configures the informational quality floor.
	Compliance engine.ComplianceConfig `yaml:"compliance" json:"compliance"`
}

// DefaultMatrixConfig returns a MatrixConfig with the engine defaults
// applied. Callers fill in the tender, committee, and vendors.
func DefaultMatrixConfig() MatrixConfig {
	return MatrixConfig{
		Consensus:  engine.DefaultConsensusConfig(),
		Compliance: engine.DefaultComplianceConfig(),
	}
}

// validateConfig checks the matrix configuration and the bound rubric
// snapshot together, since a matrix is only meaningful with both.
func validateConfig(cfg MatrixConfig, snap domain.RubricSnapshot) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("matrix configuration validation failed: %w", err)
	}
	if len(snap.Rubric.Criteria) == 0 {
		return engine.ErrNoCriteria
	}
	if err := snap.Rubric.ValidateWeights(); err != nil {
		return err
	}
	if !cfg.PeriodEnd.IsZero() && !cfg.PeriodStart.IsZero() && cfg.PeriodEnd.Before(cfg.PeriodStart) {
		verr := domain.NewValidationError("matrix")
		verr.AddError("evaluation period ends before it starts")
		return verr
	}
	return nil
}

// Actor identifies an authorized caller. Authentication and role
// assignment happen upstream; the engine only gates actions by role.
type Actor struct {
	// ID is the caller's identity.
	ID string

	// Role is the authorization level granted for this matrix.
	Role domain.Role
}

// SubmitRequest carries one evaluator's raw scores for one vendor.
type SubmitRequest struct {
	// VendorID identifies the scored vendor.
	VendorID string

	// EvaluatorID identifies the submitting committee member.
	EvaluatorID string

	// RawScores maps criterion or sub-criterion id to the raw score on
	// that criterion's 0..MaxScore scale.
	RawScores map[string]float64

	// Comments carries the evaluator's free-text remarks.
	Comments string

	// Version is the optimistic concurrency token: the VendorScore
	// version the evaluator read before editing, or zero for a first
	// submission. A stale version is rejected with a ConflictError.
	Version int64

	// Override permits resubmission over an Approved, otherwise
	// immutable score. Overridden writes are tagged in the audit trail.
	Override bool
}
