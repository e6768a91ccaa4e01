package engine

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/openprocure/evalmatrix/internal/domain"
)

// DefaultMinorFloor is the informational quality floor, on the 0-100
// normalized scale, below which optional criteria raise Minor issues.
const DefaultMinorFloor = 60.0

// ComplianceConfig defines the configuration parameters for the
// ComplianceEvaluator. Configuration is validated at construction and
// immutable afterwards.
type ComplianceConfig struct {
	// MinorFloor is the normalized 0-100 score below which an optional
	// criterion raises a Minor, informational issue. Minor issues never
	// affect the compliance verdict.
	MinorFloor float64 `yaml:"minor_floor" json:"minor_floor" validate:"min=0,max=100"`

	// RequireAllMandatory treats an unscored mandatory criterion as a
	// Critical issue. When false, unscored mandatory criteria are
	// skipped and only mandatory scores below their passing threshold
	// fail the check, which lets partial submissions be assessed
	// against the criteria they do cover.
	RequireAllMandatory bool `yaml:"require_all_mandatory" json:"require_all_mandatory"`
}

// DefaultComplianceConfig returns a ComplianceConfig with the standard
// 60-point informational floor and all mandatory criteria required.
func DefaultComplianceConfig() ComplianceConfig {
	return ComplianceConfig{MinorFloor: DefaultMinorFloor, RequireAllMandatory: true}
}

// ComplianceEvaluator determines per-criterion and overall technical
// compliance for a submission against a rubric.
//
// Compliance is a binary pass/fail independent of numeric rank: a vendor
// is technically compliant iff no mandatory criterion scores below its
// passing threshold. Non-compliance is a first-class result, never an
// error.
//
// The evaluator is agnostic to criterion input types: boolean, dropdown,
// and text criteria reach it as pre-normalized numerics, and it never
// inspects options or free text itself.
//
// The evaluator is stateless after construction and safe for concurrent
// use.
type ComplianceEvaluator struct {
	config     ComplianceConfig
	aggregator *ScoreAggregator
}

// NewComplianceEvaluator creates a ComplianceEvaluator with the given
// configuration, or an error when the configuration is invalid.
func NewComplianceEvaluator(config ComplianceConfig) (*ComplianceEvaluator, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ComplianceEvaluator{
		config:     config,
		aggregator: NewScoreAggregator(),
	}, nil
}

// NewComplianceEvaluatorFromConfig creates a ComplianceEvaluator from a
// configuration map. This is the boundary adapter for YAML/JSON
// configuration.
func NewComplianceEvaluatorFromConfig(config map[string]any) (*ComplianceEvaluator, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	// Start with defaults, then overlay caller config.
	cfg := DefaultComplianceConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewComplianceEvaluator(cfg)
}

// Check evaluates one submission's compliance. For every mandatory
// criterion whose normalized score (raw/maxScore*100) is below its
// passing score, a Critical issue is emitted; a mandatory criterion with
// no score at all is likewise Critical. Optional criteria below the
// configured minor floor emit informational Minor issues.
//
// The returned bool is true iff zero Critical issues exist.
func (ce *ComplianceEvaluator) Check(rubric domain.Rubric, rawScores map[string]float64) (bool, []domain.ComplianceIssue, error) {
	normalized, err := ce.aggregator.NormalizedScores(rubric, rawScores)
	if err != nil {
		return false, nil, err
	}

	var issues []domain.ComplianceIssue
	compliant := true

	for _, c := range rubric.Criteria {
		score, scored := normalized[c.ID]

		if c.Mandatory {
			if !scored {
				if !ce.config.RequireAllMandatory {
					continue
				}
				compliant = false
				issues = append(issues, domain.ComplianceIssue{
					CriterionID: c.ID,
					Severity:    domain.SeverityCritical,
					Threshold:   c.PassingScore,
					Detail:      fmt.Sprintf("criterion %s is mandatory and unscored", c.Name),
				})
				continue
			}
			if score < c.PassingScore {
				compliant = false
				issues = append(issues, domain.ComplianceIssue{
					CriterionID:     c.ID,
					Severity:        domain.SeverityCritical,
					NormalizedScore: score,
					Threshold:       c.PassingScore,
					Detail: fmt.Sprintf("criterion %s scored %.2f, below mandatory passing score %.2f",
						c.Name, score, c.PassingScore),
				})
			}
			continue
		}

		if scored && score < ce.config.MinorFloor {
			issues = append(issues, domain.ComplianceIssue{
				CriterionID:     c.ID,
				Severity:        domain.SeverityMinor,
				NormalizedScore: score,
				Threshold:       ce.config.MinorFloor,
				Detail: fmt.Sprintf("criterion %s scored %.2f, below the %.0f-point quality floor",
					c.Name, score, ce.config.MinorFloor),
			})
		}
	}

	return compliant, issues, nil
}

// Validate checks if the evaluator is properly configured.
func (ce *ComplianceEvaluator) Validate() error {
	if err := validate.Struct(ce.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration parameters and
// updates the evaluator's configuration. Not safe for concurrent use
// with Check.
func (ce *ComplianceEvaluator) UnmarshalParameters(params yaml.Node) error {
	config := DefaultComplianceConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	ce.config = config
	return nil
}
