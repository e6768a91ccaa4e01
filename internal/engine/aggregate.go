package engine

import (
	"fmt"

	"github.com/openprocure/evalmatrix/internal/domain"
)

// ScoreAggregator computes a vendor's weighted composite score from raw
// criterion scores and rubric weights.
//
// The aggregation model:
//   - Sub-criterion scores, when supplied, roll up into their parent
//     criterion's raw score before the top-level computation runs.
//   - Each scored top-level criterion contributes
//     (raw / maxScore) * weight.
//   - The sum of contributions is divided by the sum of weights actually
//     present, tolerating partially-scored in-progress submissions.
//   - The result is scaled to 0-100 and rounded half-up to two decimals.
//
// The aggregator is deterministic: identical inputs always yield
// byte-identical output. It is stateless and safe for concurrent use.
type ScoreAggregator struct{}

// NewScoreAggregator creates a ScoreAggregator.
func NewScoreAggregator() *ScoreAggregator { return &ScoreAggregator{} }

// WeightedScore computes the 0-100 weighted composite for one submission.
// Raw scores must be finite and within each criterion's 0..MaxScore
// range; unknown criterion ids and parent/sub double-scoring are
// rejected. Criteria absent from rawScores are simply excluded from both
// the numerator and the weight denominator.
func (sa *ScoreAggregator) WeightedScore(rubric domain.Rubric, rawScores map[string]float64) (float64, error) {
	if len(rubric.Criteria) == 0 {
		return 0, ErrNoCriteria
	}
	if err := sa.validateScoreIDs(rubric, rawScores); err != nil {
		return 0, err
	}

	var sum, presentWeight float64
	for _, c := range rubric.Criteria {
		raw, ok, err := sa.effectiveRaw(c, rawScores)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		sum += raw / c.MaxScore * c.Weight
		presentWeight += c.Weight
	}

	if presentWeight == 0 {
		return 0, ErrNoScores
	}
	return Round2(sum / presentWeight * 100), nil
}

// Complete reports whether the submission is fully scored: every
// top-level criterion resolvable, where a criterion with sub-criteria
// is resolved either by a direct parent score or by every sub-criterion
// being scored, matching what WeightedScore accepts. Only complete
// submissions make a (vendor, evaluator) pair count toward the
// automatic EvaluationComplete transition.
func (sa *ScoreAggregator) Complete(rubric domain.Rubric, rawScores map[string]float64) bool {
	for _, c := range rubric.Criteria {
		if _, ok := rawScores[c.ID]; ok {
			continue
		}
		if len(c.SubCriteria) == 0 {
			return false
		}
		for _, sc := range c.SubCriteria {
			if _, ok := rawScores[sc.ID]; !ok {
				return false
			}
		}
	}
	return true
}

// NormalizedScores returns each top-level criterion's effective score on
// the 0-100 scale, after sub-criterion rollup. Criteria without a score
// are absent from the result. The compliance evaluator consumes this
// view so that both components resolve sub-criteria identically.
func (sa *ScoreAggregator) NormalizedScores(rubric domain.Rubric, rawScores map[string]float64) (map[string]float64, error) {
	if err := sa.validateScoreIDs(rubric, rawScores); err != nil {
		return nil, err
	}
	normalized := make(map[string]float64, len(rubric.Criteria))
	for _, c := range rubric.Criteria {
		raw, ok, err := sa.effectiveRaw(c, rawScores)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		normalized[c.ID] = raw / c.MaxScore * 100
	}
	return normalized, nil
}

// effectiveRaw resolves one top-level criterion's raw score on its own
// 0..MaxScore scale. When sub-criteria are scored, their weighted rollup
// Σ (subScore/subMax)*subWeight is normalized from the 0-100 sub scale
// onto the parent's MaxScore scale. Scoring both the parent directly and
// any of its sub-criteria is ambiguous and rejected.
func (sa *ScoreAggregator) effectiveRaw(c domain.Criterion, rawScores map[string]float64) (float64, bool, error) {
	direct, hasDirect := rawScores[c.ID]

	var subSum, subWeight float64
	var hasSub bool
	for _, sc := range c.SubCriteria {
		raw, ok := rawScores[sc.ID]
		if !ok {
			continue
		}
		if raw < 0 || raw > sc.MaxScore || !isFinite(raw) {
			return 0, false, fmt.Errorf("%w: sub-criterion %s score %.2f outside 0..%.2f",
				ErrInvalidScore, sc.ID, raw, sc.MaxScore)
		}
		hasSub = true
		subSum += raw / sc.MaxScore * sc.Weight
		subWeight += sc.Weight
	}

	if hasDirect && hasSub {
		return 0, false, fmt.Errorf("%w: criterion %s", ErrAmbiguousScore, c.ID)
	}

	if hasSub {
		// Partial sub scoring mirrors the top-level tolerance: divide by
		// the sub weights actually present.
		return subSum / subWeight * c.MaxScore, true, nil
	}

	if !hasDirect {
		return 0, false, nil
	}
	if direct < 0 || direct > c.MaxScore || !isFinite(direct) {
		return 0, false, fmt.Errorf("%w: criterion %s score %.2f outside 0..%.2f",
			ErrInvalidScore, c.ID, direct, c.MaxScore)
	}
	return direct, true, nil
}

// validateScoreIDs rejects raw scores keyed by ids the rubric does not
// define at either nesting level.
func (sa *ScoreAggregator) validateScoreIDs(rubric domain.Rubric, rawScores map[string]float64) error {
	known := make(map[string]struct{}, len(rubric.Criteria))
	for _, c := range rubric.Criteria {
		known[c.ID] = struct{}{}
		for _, sc := range c.SubCriteria {
			known[sc.ID] = struct{}{}
		}
	}
	for id := range rawScores {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCriterion, id)
		}
	}
	return nil
}
