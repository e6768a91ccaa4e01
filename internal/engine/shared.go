// Package engine provides the pure computation components of the tender
// evaluation engine: compliance checking, weighted score aggregation,
// inter-evaluator consensus analysis, and deterministic ranking.
// All components are stateless after construction and safe for
// concurrent use.
package engine

import (
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by engine components.
// These errors provide consistent error handling across all engine
// implementations.
var (
	// ErrNoScores is returned when no scores are provided for a
	// computation that requires at least one.
	ErrNoScores = errors.New("no scores provided")

	// ErrNoCriteria is returned when a rubric defines no criteria.
	ErrNoCriteria = errors.New("rubric has no criteria")

	// ErrInvalidScore is returned when a raw score is NaN, infinite, or
	// outside its criterion's 0..MaxScore range.
	ErrInvalidScore = errors.New("invalid raw score")

	// ErrUnknownCriterion is returned when a raw score references a
	// criterion id the rubric does not define.
	ErrUnknownCriterion = errors.New("unknown criterion id")

	// ErrAmbiguousScore is returned when both a parent criterion and its
	// sub-criteria carry raw scores in the same submission.
	ErrAmbiguousScore = errors.New("both parent and sub-criterion scored")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// Round2 rounds to two decimal places using round-half-up.
// The engine applies this single rounding policy to every published
// weighted score so that recomputing identical inputs produces
// byte-identical output.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// isFinite reports whether v is a usable score value.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
