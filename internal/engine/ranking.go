package engine

import (
	"sort"
	"time"

	"github.com/openprocure/evalmatrix/internal/domain"
)

// VendorAggregate is the per-vendor input to the ranking engine: the
// consensus view of one vendor after all evaluators' submissions have
// been aggregated.
type VendorAggregate struct {
	// VendorID identifies the vendor.
	VendorID string

	// WeightedScore is the vendor's mean weighted score across
	// evaluators, rounded half-up to two decimals.
	WeightedScore float64

	// Variance is the population standard deviation of the evaluators'
	// weighted scores.
	Variance float64

	// ConsensusReached is true when Variance is within the matrix's
	// consensus threshold.
	ConsensusReached bool

	// TechnicalCompliance is true iff every evaluator found the vendor
	// free of Critical issues.
	TechnicalCompliance bool

	// ComplianceIssues aggregates distinct findings across evaluators.
	ComplianceIssues []domain.ComplianceIssue

	// EvaluatorCount is how many evaluators scored this vendor.
	EvaluatorCount int

	// PrimaryScore is the vendor's mean normalized score on the rubric's
	// primary criterion, the first tie-break key. Zero when the rubric
	// designates no primary criterion.
	PrimaryScore float64

	// FirstSubmission is the earliest accepted submission timestamp for
	// this vendor, the second tie-break key.
	FirstSubmission time.Time
}

// RankingEngine orders vendors by weighted score and assigns award
// recommendations.
//
// Ties are broken deterministically: higher score on the rubric's
// primary criterion when one is designated, then earlier first
// submission, then lexicographic vendor id. Since vendor ids are unique
// within a matrix, the chain guarantees a strict total order and no two
// rankings ever share a rank.
//
// The engine is stateless and safe for concurrent use.
type RankingEngine struct{}

// NewRankingEngine creates a RankingEngine.
func NewRankingEngine() *RankingEngine { return &RankingEngine{} }

// Rank produces the final ordering and recommendation for each vendor.
//
// Recommendation assignment:
//   - rank 1 and technically compliant: Award
//   - technically compliant and weighted score at or above the rubric's
//     passing threshold, at any rank: Consider
//   - otherwise: Reject
//
// A technically non-compliant vendor can never receive Award, so when
// the numeric leader is non-compliant no vendor is awarded at all.
func (re *RankingEngine) Rank(rubric domain.Rubric, aggregates []VendorAggregate) []domain.Ranking {
	ordered := make([]VendorAggregate, len(aggregates))
	copy(ordered, aggregates)

	sort.Slice(ordered, func(i, j int) bool {
		return re.less(ordered[i], ordered[j])
	})

	rankings := make([]domain.Ranking, 0, len(ordered))
	for i, agg := range ordered {
		rec := domain.RecommendReject
		switch {
		case i == 0 && agg.TechnicalCompliance:
			rec = domain.RecommendAward
		case agg.TechnicalCompliance && agg.WeightedScore >= rubric.PassingThreshold:
			rec = domain.RecommendConsider
		}
		rankings = append(rankings, domain.Ranking{
			Rank:                i + 1,
			VendorID:            agg.VendorID,
			WeightedScore:       agg.WeightedScore,
			Variance:            agg.Variance,
			ConsensusReached:    agg.ConsensusReached,
			TechnicalCompliance: agg.TechnicalCompliance,
			ComplianceIssues:    agg.ComplianceIssues,
			Recommendation:      rec,
			EvaluatorCount:      agg.EvaluatorCount,
		})
	}
	return rankings
}

// RecommendedAward returns the vendor id of the unique Award-recommended
// vendor, or empty when none qualifies.
func (re *RankingEngine) RecommendedAward(rankings []domain.Ranking) string {
	for _, r := range rankings {
		if r.Recommendation == domain.RecommendAward {
			return r.VendorID
		}
	}
	return ""
}

// less orders a before b: descending weighted score, then the
// deterministic tie-break chain.
func (re *RankingEngine) less(a, b VendorAggregate) bool {
	if a.WeightedScore != b.WeightedScore {
		return a.WeightedScore > b.WeightedScore
	}
	if a.PrimaryScore != b.PrimaryScore {
		return a.PrimaryScore > b.PrimaryScore
	}
	if !a.FirstSubmission.Equal(b.FirstSubmission) {
		return a.FirstSubmission.Before(b.FirstSubmission)
	}
	return a.VendorID < b.VendorID
}
