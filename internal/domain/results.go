package domain

import (
	"time"
)

// Recommendation is the award outcome assigned to a ranked vendor.
type Recommendation string

// Award recommendations. A technically non-compliant vendor can never
// receive Award regardless of its numeric rank.
const (
	// RecommendAward marks the rank-1, technically compliant vendor.
	RecommendAward Recommendation = "award"

	// RecommendConsider marks compliant vendors at or above the rubric's
	// passing threshold that did not win.
	RecommendConsider Recommendation = "consider"

	// RecommendReject marks non-compliant or below-threshold vendors.
	RecommendReject Recommendation = "reject"
)

// Ranking is one vendor's row in the final ordering. Ranks form a strict
// total order: the deterministic tie-break chain guarantees no two rows
// ever share a rank.
type Ranking struct {
	// Rank is the 1-based position in the final ordering.
	Rank int `json:"rank"`

	// VendorID identifies the ranked vendor.
	VendorID string `json:"vendor_id"`

	// WeightedScore is the consensus weighted score across evaluators,
	// rounded half-up to two decimals.
	WeightedScore float64 `json:"weighted_score"`

	// Variance is the population standard deviation of the evaluators'
	// weighted scores for this vendor.
	Variance float64 `json:"variance"`

	// ConsensusReached is true when Variance is within the matrix's
	// consensus threshold.
	ConsensusReached bool `json:"consensus_reached"`

	// TechnicalCompliance is true iff every evaluator found the vendor
	// free of Critical compliance issues.
	TechnicalCompliance bool `json:"technical_compliance"`

	// ComplianceIssues aggregates the distinct findings across evaluators.
	ComplianceIssues []ComplianceIssue `json:"compliance_issues,omitempty"`

	// Recommendation is the award outcome for this vendor.
	Recommendation Recommendation `json:"recommendation"`

	// EvaluatorCount is how many evaluators scored this vendor.
	EvaluatorCount int `json:"evaluator_count"`
}

// MatrixResults is the derived snapshot of one evaluation exercise. It is
// a pure function of the current VendorScore set and the bound rubric,
// regenerated whole on every accepted submission and state transition;
// it is never incrementally patched, so it cannot drift.
type MatrixResults struct {
	// Rankings is the deterministic, tie-broken vendor ordering.
	Rankings []Ranking `json:"rankings"`

	// ConsensusReached is true iff every vendor's inter-evaluator
	// variance is within the consensus threshold.
	ConsensusReached bool `json:"consensus_reached"`

	// AverageScore is the mean of all vendors' weighted scores.
	AverageScore float64 `json:"average_score"`

	// ScoreVariance is the arithmetic mean of the per-vendor
	// inter-evaluator variances.
	ScoreVariance float64 `json:"score_variance"`

	// RecommendedAward is the vendor id of the unique Award-recommended
	// vendor, or empty when no vendor qualifies.
	RecommendedAward string `json:"recommended_award,omitempty"`

	// TechnicallyCompliant counts vendors with full technical compliance.
	TechnicallyCompliant int `json:"technically_compliant"`

	// TotalEvaluated counts the submitted (vendor, evaluator) pairs.
	TotalEvaluated int `json:"total_evaluated"`

	// ExpectedSubmissions is roster size times eligible vendor count.
	// TotalEvaluated < ExpectedSubmissions reports evaluation gaps after
	// a manual close rather than blocking the transition.
	ExpectedSubmissions int `json:"expected_submissions"`

	// ComputedAt records when this snapshot was generated.
	ComputedAt time.Time `json:"computed_at"`
}

// Clone returns a deep value-copy of the results snapshot.
func (mr *MatrixResults) Clone() MatrixResults {
	return deepCopyValue(*mr).(MatrixResults)
}

// ExportRow is the flat, serialization-ready representation of one
// ranking row consumed by presentation layers (CSV, JSON, tables).
type ExportRow struct {
	Rank           int     `json:"rank"`
	VendorID       string  `json:"vendor_id"`
	TechnicalScore float64 `json:"technical_score"`
	FinalScore     float64 `json:"final_score"`
	Compliant      bool    `json:"compliant"`
	Recommendation string  `json:"recommendation"`
	Evaluators     int     `json:"evaluators"`
	Consensus      bool    `json:"consensus"`
}

// ExportRows flattens the rankings into presentation-ready rows in rank
// order. The technical and final scores coincide in this engine; hosts
// that blend a separate financial envelope overwrite FinalScore.
func (mr *MatrixResults) ExportRows() []ExportRow {
	rows := make([]ExportRow, 0, len(mr.Rankings))
	for _, r := range mr.Rankings {
		rows = append(rows, ExportRow{
			Rank:           r.Rank,
			VendorID:       r.VendorID,
			TechnicalScore: r.WeightedScore,
			FinalScore:     r.WeightedScore,
			Compliant:      r.TechnicalCompliance,
			Recommendation: string(r.Recommendation),
			Evaluators:     r.EvaluatorCount,
			Consensus:      r.ConsensusReached,
		})
	}
	return rows
}
